// Package directory holds an in-memory principal directory for tests and local runs.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/ports"
)

var _ ports.DirectoryAdmin = (*MemoryDirectory)(nil)

// DefaultRole is assigned to principals created without one
const DefaultRole = "staff"

// MemoryDirectory is an in-memory implementation of the DirectoryAdmin interface
type MemoryDirectory struct {
	mu         sync.RWMutex
	principals map[string]core.Principal
	now        core.Clock
}

// NewMemoryDirectory creates a new in-memory directory
func NewMemoryDirectory(clock core.Clock) *MemoryDirectory {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryDirectory{
		principals: make(map[string]core.Principal),
		now:        clock,
	}
}

// FindByUsername returns a copy of the stored principal
func (d *MemoryDirectory) FindByUsername(ctx context.Context, username string) (*core.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.principals[username]
	if !ok {
		return nil, core.ErrPrincipalNotFound
	}
	return &p, nil
}

// TouchLastLogin sets the principal's last login time
func (d *MemoryDirectory) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.principals[username]
	if !ok {
		return core.ErrPrincipalNotFound
	}
	p.LastLoginAt = at.UTC()
	d.principals[username] = p
	return nil
}

// Create stores a new principal
func (d *MemoryDirectory) Create(ctx context.Context, p *core.Principal) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	if p == nil || strings.TrimSpace(p.Username) == "" || p.PasswordHash == "" {
		return fmt.Errorf("%w: username and password hash are required", core.ErrValidation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.principals[p.Username]; ok {
		return core.ErrPrincipalExists
	}

	stored := *p
	if stored.Role == "" {
		stored.Role = DefaultRole
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = d.now().UTC()
	}
	d.principals[stored.Username] = stored

	p.Role = stored.Role
	p.CreatedAt = stored.CreatedAt
	return nil
}

// Exists reports whether username is taken
func (d *MemoryDirectory) Exists(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.principals[username]
	return ok, nil
}
