package keeper

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
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
	"github.com/layer-3/keeper/service"
)

func newAuthService(t *testing.T) *service.AuthService {
	t.Helper()

	tok, err := tokenizer.NewJWTTokenizer(tokenizer.Config{Secret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)

	h := hasher.NewBcrypt(bcrypt.MinCost)
	dir := directory.NewMemoryDirectory(nil)
	hash, err := h.Hash([]byte("correct-pw"))
	require.NoError(t, err)
	require.NoError(t, dir.Create(context.Background(), &core.Principal{Username: "alice", PasswordHash: hash}))

	return service.NewAuthService(service.Dependencies{
		Tokenizer: tok,
		Registry:  store.NewMemoryRegistry(),
		Directory: dir,
		Hasher:    h,
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Logger:    zerolog.Nop(),
	})
}

func TestClientErrorsMatchCategories(t *testing.T) {
	var client Client = newAuthService(t)
	ctx := context.Background()

	_, err := client.Login(ctx, "alice", "wrong")
	assert.True(t, errors.Is(err, ErrAuthentication))

	_, err = client.Refresh(ctx, "")
	assert.True(t, errors.Is(err, ErrValidation))

	res, err := client.Login(ctx, "alice", "correct-pw")
	require.NoError(t, err)

	claims, err := client.VerifyAccess(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	require.NoError(t, client.Logout(ctx, res.RefreshToken))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := NewServer("127.0.0.1:0", newAuthService(t), zerolog.Nop(), nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
