package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/ports"
)

// MinSecretLength is the shortest HMAC secret the tokenizer accepts
const MinSecretLength = 32

const (
	// DefaultAccessTTL is the lifetime of an access token when none is configured
	DefaultAccessTTL = 15 * time.Minute

	// DefaultRefreshTTL is the lifetime of a refresh token when none is configured
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ErrSecretTooShort is returned by NewJWTTokenizer for weak secrets
var ErrSecretTooShort = fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)

// Config holds the tokenizer settings
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      core.Clock
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// JWTTokenizer signs and verifies HS256 JWTs with a process-wide secret
type JWTTokenizer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        core.Clock
	parser     *jwt.Parser
}

// NewJWTTokenizer creates a new JWT tokenizer. The secret is copied and never changes afterwards.
func NewJWTTokenizer(cfg Config) (*JWTTokenizer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &JWTTokenizer{
		secret:     secret,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(cfg.Clock),
		),
	}, nil
}

// TTL returns the default lifetime for kind
func (j *JWTTokenizer) TTL(kind core.TokenKind) time.Duration {
	if kind == core.TokenKindRefresh {
		return j.refreshTTL
	}
	return j.accessTTL
}

// Issue signs a new token of the given kind for username
func (j *JWTTokenizer) Issue(username string, kind core.TokenKind, ttl time.Duration) (string, core.TokenClaims, error) {
	if username == "" {
		return "", core.TokenClaims{}, errors.New("username is required")
	}
	if !kind.Valid() {
		return "", core.TokenClaims{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if ttl <= 0 {
		ttl = j.TTL(kind)
	}

	now := j.now()
	claims := Claims{
		Username:  username,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", core.TokenClaims{}, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return signedToken, toCoreClaims(&claims), nil
}

// Decode parses and verifies a token. Structural, signature and expiry
// failures all collapse to core.ErrInvalidToken.
func (j *JWTTokenizer) Decode(tokenStr string) (core.TokenClaims, error) {
	token, err := j.parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil || !token.Valid {
		return core.TokenClaims{}, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Username == "" || claims.IssuedAt == nil {
		return core.TokenClaims{}, core.ErrInvalidToken
	}
	if !core.TokenKind(claims.TokenType).Valid() {
		return core.TokenClaims{}, core.ErrInvalidToken
	}

	return toCoreClaims(claims), nil
}

func toCoreClaims(c *Claims) core.TokenClaims {
	return core.TokenClaims{
		ID:        c.ID,
		Username:  c.Username,
		Kind:      core.TokenKind(c.TokenType),
		IssuedAt:  c.IssuedAt.Time.UTC(),
		ExpiresAt: c.ExpiresAt.Time.UTC(),
	}
}
