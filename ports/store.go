package ports

import "context"

// Registry keeps, per principal, the bounded ordered set of live refresh tokens.
// Mutations for one principal must be serialized by the implementation.
type Registry interface {
	// Register appends token to the principal's list and returns the tokens
	// evicted to keep the list within core.MaxRefreshSessions, oldest first.
	Register(ctx context.Context, username, token string) (evicted []string, err error)

	// IsActive reports whether token is currently in the principal's list
	IsActive(ctx context.Context, username, token string) (bool, error)

	// Revoke removes token from the principal's list. It reports false when
	// the token was not present.
	Revoke(ctx context.Context, username, token string) (removed bool, err error)
}

// SessionLister is implemented by registries that can enumerate a principal's sessions
type SessionLister interface {
	Sessions(ctx context.Context, username string) ([]string, error)
}
