package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/layer-3/keeper/adapters/events"
	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/internal/metrics"
	"github.com/layer-3/keeper/ports"
)

// Dependencies are the collaborators AuthService is built from
type Dependencies struct {
	Tokenizer ports.Tokenizer
	Registry  ports.Registry
	Directory ports.Directory
	Hasher    ports.PasswordHasher

	// Events is optional; nil discards session events.
	Events ports.EventPublisher
	// Metrics is optional.
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	Clock   core.Clock
	// StorageTimeout bounds each registry and directory call. Zero disables it.
	StorageTimeout time.Duration
}

// AuthService runs the login, refresh and logout flows
type AuthService struct {
	credentials *CredentialVerifier
	verifier    *TokenVerifier
	tokenizer   ports.Tokenizer
	registry    ports.Registry
	eventPub    ports.EventPublisher
	metrics     *metrics.Metrics
	log         zerolog.Logger
	now         core.Clock
	timeout     time.Duration
}

// LoginResult is returned by a successful login
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Principal        *core.Principal
}

// RefreshResult is returned by a successful refresh
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(deps Dependencies) *AuthService {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}

	return &AuthService{
		credentials: NewCredentialVerifier(deps.Directory, deps.Hasher, deps.Clock, deps.StorageTimeout, deps.Logger),
		verifier:    NewTokenVerifier(deps.Tokenizer, deps.Registry, deps.StorageTimeout, deps.Metrics),
		tokenizer:   deps.Tokenizer,
		registry:    deps.Registry,
		eventPub:    deps.Events,
		metrics:     deps.Metrics,
		log:         deps.Logger,
		now:         deps.Clock,
		timeout:     deps.StorageTimeout,
	}
}

// Verifier returns the token verifier used by the service
func (s *AuthService) Verifier() *TokenVerifier {
	return s.verifier
}

// Login authenticates a principal by password and opens a new refresh session
func (s *AuthService) Login(ctx context.Context, username, password string) (res *LoginResult, err error) {
	defer func() { s.metrics.Login(resultOf(err)) }()

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", core.ErrValidation)
	}

	principal, err := s.credentials.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			s.log.Info().Str("username", username).Msg("login rejected")
			return nil, fmt.Errorf("%w: %w", core.ErrAuthentication, err)
		}
		return nil, err
	}

	accessToken, accessClaims, err := s.tokenizer.Issue(principal.Username, core.TokenKindAccess, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, refreshClaims, err := s.tokenizer.Issue(principal.Username, core.TokenKindRefresh, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	evicted, err := s.register(ctx, principal.Username, refreshToken)
	if err != nil {
		return nil, err
	}

	s.credentials.RecordLogin(ctx, principal.Username)

	occurredAt := s.now().UnixMilli()
	if err := s.eventPub.PublishLogin(ctx, ports.NewSessionEvent(principal.Username, refreshToken, occurredAt)); err != nil {
		s.log.Warn().Err(err).Str("username", principal.Username).Msg("failed to publish login event")
	}
	for _, old := range evicted {
		s.log.Info().
			Str("username", principal.Username).
			Str("session", core.Fingerprint(old)).
			Msg("evicted oldest refresh session")
		if err := s.eventPub.PublishEvicted(ctx, ports.NewSessionEvent(principal.Username, old, occurredAt)); err != nil {
			s.log.Warn().Err(err).Str("username", principal.Username).Msg("failed to publish eviction event")
		}
	}
	s.metrics.Evicted(len(evicted))

	s.log.Info().
		Str("username", principal.Username).
		Str("session", core.Fingerprint(refreshToken)).
		Msg("login succeeded")

	return &LoginResult{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessClaims.ExpiresAt,
		RefreshExpiresAt: refreshClaims.ExpiresAt,
		Principal:        principal,
	}, nil
}

// Refresh issues a new access token for a live refresh session.
// The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *RefreshResult, err error) {
	defer func() { s.metrics.Refresh(resultOf(err)) }()

	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", core.ErrValidation)
	}

	claims, err := s.verifier.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		s.log.Debug().Err(err).Str("session", core.Fingerprint(refreshToken)).Msg("refresh rejected")
		return nil, err
	}

	accessToken, accessClaims, err := s.tokenizer.Issue(claims.Username, core.TokenKindAccess, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &RefreshResult{
		AccessToken: accessToken,
		ExpiresAt:   accessClaims.ExpiresAt,
	}, nil
}

// Logout closes the refresh session. A token that decodes as a refresh token
// succeeds whether or not it was still registered, so callers holding a stale
// token learn nothing about the session's history.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { s.metrics.Logout(resultOf(err)) }()

	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", core.ErrValidation)
	}

	claims, err := s.tokenizer.Decode(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrAuthentication, core.ErrInvalidToken)
	}
	if claims.Kind != core.TokenKindRefresh {
		return fmt.Errorf("%w: %w", core.ErrAuthentication, core.ErrWrongTokenKind)
	}

	removed, err := s.revoke(ctx, claims.Username, refreshToken)
	if err != nil {
		return err
	}

	logger := s.log.With().Str("username", claims.Username).Str("session", core.Fingerprint(refreshToken)).Logger()
	if !removed {
		logger.Debug().Msg("logout for inactive refresh session")
		return nil
	}

	logger.Info().Msg("logout succeeded")
	if err := s.eventPub.PublishLogout(ctx, ports.NewSessionEvent(claims.Username, refreshToken, s.now().UnixMilli())); err != nil {
		// The session is already gone from the registry, which is what matters.
		logger.Warn().Err(err).Msg("failed to publish logout event")
	}
	return nil
}

// VerifyAccess validates a bearer access token
func (s *AuthService) VerifyAccess(ctx context.Context, accessToken string) (*core.TokenClaims, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrAuthentication, core.ErrInvalidToken)
	}
	claims, err := s.verifier.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

func (s *AuthService) register(ctx context.Context, username, token string) ([]string, error) {
	regCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	evicted, err := s.registry.Register(regCtx, username, token)
	s.metrics.ObserveRegistry("register", start)
	if err != nil {
		return nil, asStorage("register", err)
	}
	return evicted, nil
}

func (s *AuthService) revoke(ctx context.Context, username, token string) (bool, error) {
	revokeCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	removed, err := s.registry.Revoke(revokeCtx, username, token)
	s.metrics.ObserveRegistry("revoke", start)
	if err != nil {
		return false, asStorage("revoke", err)
	}
	return removed, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, core.ErrAuthentication), errors.Is(err, core.ErrValidation):
		return metrics.ResultFailure
	default:
		return metrics.ResultError
	}
}
