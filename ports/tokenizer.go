package ports

import (
	"time"

	"github.com/layer-3/keeper/core"
)

// Tokenizer converts between claims and signed tokens
type Tokenizer interface {
	// Issue signs a new token for username. A non-positive ttl selects the
	// default lifetime configured for kind.
	Issue(username string, kind core.TokenKind, ttl time.Duration) (string, core.TokenClaims, error)

	// Decode verifies signature and expiry. Every failure is core.ErrInvalidToken.
	Decode(token string) (core.TokenClaims, error)
}
