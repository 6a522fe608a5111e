package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/layer-3/keeper/adapters/directory"
	"github.com/layer-3/keeper/adapters/hasher"
	"github.com/layer-3/keeper/adapters/store"
	"github.com/layer-3/keeper/adapters/tokenizer"
	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/internal/metrics"
	"github.com/layer-3/keeper/ports"
	"github.com/layer-3/keeper/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router    *gin.Engine
	tokenizer *tokenizer.JWTTokenizer
}

func newTestServer(t *testing.T, registry ports.Registry) *testServer {
	t.Helper()

	tok, err := tokenizer.NewJWTTokenizer(tokenizer.Config{Secret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)

	h := hasher.NewBcrypt(bcrypt.MinCost)
	dir := directory.NewMemoryDirectory(nil)
	hash, err := h.Hash([]byte("correct-pw"))
	require.NoError(t, err)
	require.NoError(t, dir.Create(context.Background(), &core.Principal{
		Username:     "alice",
		PasswordHash: hash,
		Email:        "alice@example.com",
	}))

	if registry == nil {
		registry = store.NewMemoryRegistry()
	}

	promRegistry := prometheus.NewRegistry()
	deps := service.Dependencies{
		Tokenizer:      tok,
		Registry:       registry,
		Directory:      dir,
		Hasher:         h,
		Metrics:        metrics.New(promRegistry),
		Logger:         zerolog.Nop(),
		StorageTimeout: time.Second,
	}
	return &testServer{
		router:    SetupRouter(service.NewAuthService(deps), zerolog.Nop(), promRegistry),
		tokenizer: tok,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func (s *testServer) login(t *testing.T) (access, refresh string) {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/login", map[string]string{"username": "alice", "password": "correct-pw"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return body["accessToken"].(string), body["refreshToken"].(string)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodPost, "/login", map[string]string{"username": "alice", "password": "correct-pw"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
	assert.Equal(t, map[string]any{"username": "alice", "email": "alice@example.com"}, body["user"])
}

func TestLogin_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name   string
		body   any
		status int
		msg    string
	}{
		{"wrong password", map[string]string{"username": "alice", "password": "nope"}, http.StatusUnauthorized, "invalid credentials"},
		{"unknown user", map[string]string{"username": "mallory", "password": "correct-pw"}, http.StatusUnauthorized, "invalid credentials"},
		{"missing password", map[string]string{"username": "alice"}, http.StatusBadRequest, "invalid request"},
		{"malformed json", "{", http.StatusBadRequest, "invalid request"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, "/login", tc.body, nil)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, map[string]any{"error": tc.msg}, body)
		})
	}
}

func TestRefreshVerifyLogout(t *testing.T) {
	s := newTestServer(t, nil)
	access, refresh := s.login(t)

	w, body := s.do(t, http.MethodGet, "/verify", nil, bearer(access))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"username": "alice"}, body["user"])

	w, body = s.do(t, http.MethodPost, "/token/refresh", map[string]string{"refreshToken": refresh}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	next, ok := body["accessToken"].(string)
	require.True(t, ok)
	assert.NotEqual(t, access, next)

	w, body = s.do(t, http.MethodPost, "/token/logout", map[string]string{"refreshToken": refresh}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "logged out", body["message"])

	w, body = s.do(t, http.MethodPost, "/token/refresh", map[string]string{"refreshToken": refresh}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid or expired token", body["error"])

	// Logging out an inactive session is indistinguishable from the first logout.
	w, _ = s.do(t, http.MethodPost, "/token/logout", map[string]string{"refreshToken": refresh}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerify_RejectsBadBearer(t *testing.T) {
	s := newTestServer(t, nil)
	_, refresh := s.login(t)

	for name, header := range map[string]http.Header{
		"missing":       nil,
		"wrong scheme":  {"Authorization": []string{"Basic abc"}},
		"empty":         bearer(""),
		"garbage":       bearer("not-a-token"),
		"refresh token": bearer(refresh),
	} {
		t.Run(name, func(t *testing.T) {
			w, body := s.do(t, http.MethodGet, "/verify", nil, header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, map[string]any{"error": "invalid or expired token"}, body)
		})
	}
}

func TestTokenEndpoints_TypeConfusion(t *testing.T) {
	s := newTestServer(t, nil)
	access, _ := s.login(t)

	w, _ := s.do(t, http.MethodPost, "/token/refresh", map[string]string{"refreshToken": access}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/token/logout", map[string]string{"refreshToken": access}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/token/logout", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type downRegistry struct {
	*store.MemoryRegistry
}

func (downRegistry) Register(context.Context, string, string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (downRegistry) IsActive(context.Context, string, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestStorageFailureIs500(t *testing.T) {
	s := newTestServer(t, downRegistry{store.NewMemoryRegistry()})

	w, body := s.do(t, http.MethodPost, "/login", map[string]string{"username": "alice", "password": "correct-pw"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]any{"error": "service temporarily unavailable"}, body)

	refresh, _, err := s.tokenizer.Issue("alice", core.TokenKindRefresh, 0)
	require.NoError(t, err)

	w, _ = s.do(t, http.MethodPost, "/token/refresh", map[string]string{"refreshToken": refresh}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t)

	w, body := s.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `keeper_logins_total{result="success"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(core.ErrValidation))
	assert.Equal(t, http.StatusUnauthorized, statusFor(errors.Join(core.ErrAuthentication, core.ErrSessionRevoked)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(core.ErrStorage))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("unexpected")))
}
