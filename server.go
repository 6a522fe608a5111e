package keeper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/layer-3/keeper/service"
	transport "github.com/layer-3/keeper/transport/http"
)

// DefaultShutdownTimeout bounds how long in-flight requests may drain on shutdown
const DefaultShutdownTimeout = 5 * time.Second

// Server serves the token endpoints over HTTP
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
	shutdown   time.Duration
}

// NewServer wires the router for authService. gatherer backs /metrics and may be nil.
func NewServer(addr string, authService *service.AuthService, log zerolog.Logger, gatherer prometheus.Gatherer) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           transport.SetupRouter(authService, log, gatherer),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log:      log,
		shutdown: DefaultShutdownTimeout,
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured address and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight requests
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("server listening")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info().Msg("server stopped")
	return nil
}
