package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/layer-3/keeper/service"
)

// SetupRouter sets up the Gin router. A nil gatherer leaves /metrics unmounted.
func SetupRouter(authService *service.AuthService, log zerolog.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	// Create handlers
	handlers := NewAuthHandlers(authService)

	router.GET("/healthz", handlers.Health)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	router.POST("/login", handlers.Login)

	// Token routes
	token := router.Group("/token")
	{
		token.POST("/refresh", handlers.Refresh)
		token.POST("/logout", handlers.Logout)
	}

	// Protected routes
	protected := router.Group("/")
	protected.Use(AuthMiddleware(authService))
	{
		protected.GET("/verify", handlers.Verify)
	}

	return router
}
