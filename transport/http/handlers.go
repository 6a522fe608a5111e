package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/service"
)

// Client facing error messages. Internal causes are never rendered.
const (
	msgInvalidRequest     = "invalid request"
	msgInvalidCredentials = "invalid credentials"
	msgInvalidToken       = "invalid or expired token"
	msgUnavailable        = "service temporarily unavailable"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type userView struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err, msgInvalidCredentials)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
		"user": userView{
			Username: res.Principal.Username,
			Email:    res.Principal.Email,
		},
	})
}

// Refresh handles access token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	res, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err, msgInvalidToken)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accessToken": res.AccessToken})
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidRequest})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, err, msgInvalidToken)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Verify returns the principal of the bearer access token.
// AuthMiddleware has already validated the token when this runs.
func (h *AuthHandlers) Verify(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgInvalidToken})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": userView{Username: claims.Username},
	})
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func respondError(c *gin.Context, err error, authMsg string) {
	status := statusFor(err)
	msg := msgUnavailable
	switch status {
	case http.StatusBadRequest:
		msg = msgInvalidRequest
	case http.StatusUnauthorized:
		msg = authMsg
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

// statusFor maps an error category to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrAuthentication):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
