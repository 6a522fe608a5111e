package ports

import (
	"context"
	"time"

	"github.com/layer-3/keeper/core"
)

// Directory looks up principals for authentication
type Directory interface {
	// FindByUsername returns core.ErrPrincipalNotFound when no such principal exists
	FindByUsername(ctx context.Context, username string) (*core.Principal, error)

	// TouchLastLogin records a successful login
	TouchLastLogin(ctx context.Context, username string, at time.Time) error
}

// DirectoryAdmin is the account management surface used by operational tooling
type DirectoryAdmin interface {
	Directory

	// Create returns core.ErrPrincipalExists when the username is taken
	Create(ctx context.Context, p *core.Principal) error

	Exists(ctx context.Context, username string) (bool, error)
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password []byte) (string, error)

	// Compare returns nil when password matches hash
	Compare(hash string, password []byte) error
}
