package core

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MaxRefreshSessions is the number of refresh sessions a principal may hold at once.
// Registering one more evicts the oldest.
const MaxRefreshSessions = 5

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	// TokenKindAccess is a short-lived, stateless bearer token
	TokenKindAccess TokenKind = "access"

	// TokenKindRefresh is a long-lived token that is only valid while registered
	TokenKindRefresh TokenKind = "refresh"
)

// Valid reports whether k is a known token kind
func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// Principal represents an account tokens can be issued for
type Principal struct {
	Username     string    // Unique, stable key
	PasswordHash string    // bcrypt hash, never serialized to clients
	Role         string    // Application role, e.g. "staff" or "admin"
	Email        string    // Optional
	CreatedAt    time.Time // When the account was created
	LastLoginAt  time.Time // Zero until the first successful login
}

// TokenClaims is the signed payload carried inside every token
type TokenClaims struct {
	ID        string    // Unique token identifier (jti)
	Username  string    // Principal the token was issued for
	Kind      TokenKind // access or refresh
	IssuedAt  time.Time // When the token was minted
	ExpiresAt time.Time // When the token stops being valid
}

// Clock returns the current time
type Clock func() time.Time

// Fingerprint returns a short, non-reversible identifier for a token.
// Used in logs and events in place of the token itself.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
