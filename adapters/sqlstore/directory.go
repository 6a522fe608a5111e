package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/ports"
)

var _ ports.DirectoryAdmin = (*Directory)(nil)

// Directory implements principal lookup and account management over SQL
type Directory struct {
	store *Store
}

// NewDirectory returns a principal directory backed by store
func NewDirectory(store *Store) *Directory {
	return &Directory{store: store}
}

// FindByUsername returns the principal or core.ErrPrincipalNotFound
func (d *Directory) FindByUsername(ctx context.Context, username string) (*core.Principal, error) {
	var (
		p         core.Principal
		email     sql.NullString
		createdAt int64
		lastLogin sql.NullInt64
	)
	err := d.store.db.QueryRowContext(ctx, d.store.q.findPrincipal, username).
		Scan(&p.Username, &p.PasswordHash, &p.Role, &email, &createdAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrPrincipalNotFound
		}
		return nil, wrapStorage("find principal", err)
	}

	p.Email = email.String
	p.CreatedAt = fromMillis(createdAt)
	if lastLogin.Valid {
		p.LastLoginAt = fromMillis(lastLogin.Int64)
	}
	return &p, nil
}

// TouchLastLogin sets last_login_at. Unknown usernames are ignored.
func (d *Directory) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	if _, err := d.store.db.ExecContext(ctx, d.store.q.touchLogin, username, toMillis(at)); err != nil {
		return wrapStorage("touch last login", err)
	}
	return nil
}

// Create inserts a new principal. CreatedAt defaults to now.
func (d *Directory) Create(ctx context.Context, p *core.Principal) error {
	if p.Username == "" || p.PasswordHash == "" {
		return core.ErrValidation
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = d.store.now()
	}
	role := p.Role
	if role == "" {
		role = "staff"
	}
	email := sql.NullString{String: p.Email, Valid: p.Email != ""}

	res, err := d.store.db.ExecContext(ctx, d.store.q.createPrinc, p.Username, p.PasswordHash, role, email, toMillis(createdAt))
	if err != nil {
		return wrapStorage("create principal", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStorage("create principal", err)
	}
	if n == 0 {
		return core.ErrPrincipalExists
	}
	return nil
}

// Exists reports whether a principal with username exists
func (d *Directory) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	if err := d.store.db.QueryRowContext(ctx, d.store.q.existsPrinc, username).Scan(&exists); err != nil {
		return false, wrapStorage("principal exists", err)
	}
	return exists, nil
}
