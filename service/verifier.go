package service

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/internal/metrics"
	"github.com/layer-3/keeper/ports"
)

// TokenVerifier decides whether a presented token is currently valid
type TokenVerifier struct {
	tokenizer ports.Tokenizer
	registry  ports.Registry
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewTokenVerifier creates a verifier. timeout bounds each registry call; zero disables it.
func NewTokenVerifier(tokenizer ports.Tokenizer, registry ports.Registry, timeout time.Duration, m *metrics.Metrics) *TokenVerifier {
	return &TokenVerifier{
		tokenizer: tokenizer,
		registry:  registry,
		timeout:   timeout,
		metrics:   m,
	}
}

// VerifyAccess accepts a correctly signed, unexpired access token.
// The registry is not consulted.
func (v *TokenVerifier) VerifyAccess(ctx context.Context, token string) (core.TokenClaims, error) {
	return v.decode(token, core.TokenKindAccess)
}

// VerifyRefresh accepts a correctly signed, unexpired refresh token that is
// still registered for its principal.
func (v *TokenVerifier) VerifyRefresh(ctx context.Context, token string) (core.TokenClaims, error) {
	claims, err := v.decode(token, core.TokenKindRefresh)
	if err != nil {
		return core.TokenClaims{}, err
	}

	checkCtx, cancel := withTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	active, err := v.registry.IsActive(checkCtx, claims.Username, token)
	v.metrics.ObserveRegistry("is_active", start)
	if err != nil {
		return core.TokenClaims{}, asStorage("is active", err)
	}
	if !active {
		return core.TokenClaims{}, fmt.Errorf("%w: %w", core.ErrAuthentication, core.ErrSessionRevoked)
	}

	return claims, nil
}

func (v *TokenVerifier) decode(token string, kind core.TokenKind) (core.TokenClaims, error) {
	claims, err := v.tokenizer.Decode(token)
	if err != nil {
		return core.TokenClaims{}, fmt.Errorf("%w: %w", core.ErrAuthentication, core.ErrInvalidToken)
	}
	if claims.Kind != kind {
		return core.TokenClaims{}, fmt.Errorf("%w: %w", core.ErrAuthentication, core.ErrWrongTokenKind)
	}
	return claims, nil
}
