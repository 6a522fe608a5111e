package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/layer-3/keeper/adapters/store"
	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/ports"
)

var (
	_ ports.Registry      = (*Registry)(nil)
	_ ports.SessionLister = (*Registry)(nil)
)

// Registry keeps each principal's refresh tokens in one refresh_sessions row
type Registry struct {
	store *Store
	limit int
}

// NewRegistry returns a refresh session registry backed by store
func NewRegistry(s *Store) *Registry {
	return &Registry{store: s, limit: core.MaxRefreshSessions}
}

// Register appends token under the row lock and evicts the oldest entries over the limit
func (r *Registry) Register(ctx context.Context, username, token string) ([]string, error) {
	var evicted []string
	err := r.mutate(ctx, "register", username, true, func(tokens []string) ([]string, bool) {
		next, out := store.Append(tokens, token, r.limit)
		evicted = out
		return next, true
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

// IsActive reports whether token is in the principal's row
func (r *Registry) IsActive(ctx context.Context, username, token string) (bool, error) {
	tokens, err := r.Sessions(ctx, username)
	if err != nil {
		return false, err
	}
	return store.Contains(tokens, token), nil
}

// Revoke removes one occurrence of token under the row lock
func (r *Registry) Revoke(ctx context.Context, username, token string) (bool, error) {
	var removed bool
	err := r.mutate(ctx, "revoke", username, false, func(tokens []string) ([]string, bool) {
		next, ok := store.Remove(tokens, token)
		removed = ok
		return next, ok
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Sessions returns the principal's tokens, oldest first
func (r *Registry) Sessions(ctx context.Context, username string) ([]string, error) {
	var raw string
	err := r.store.db.QueryRowContext(ctx, r.store.q.readSession, username).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapStorage("read sessions", err)
	}
	return decodeTokens(raw)
}

// mutate runs fn over the principal's locked token list and writes the result back
// when fn reports a change. create inserts an empty row first so there is always
// a row to lock.
func (r *Registry) mutate(ctx context.Context, op, username string, create bool, fn func([]string) ([]string, bool)) (err error) {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStorage(op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := toMillis(r.store.now())

	if create {
		if _, err = tx.ExecContext(ctx, r.store.q.ensureSession, username, now); err != nil {
			return wrapStorage(op, err)
		}
	}

	var raw string
	err = tx.QueryRowContext(ctx, r.store.q.lockSession, username).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return tx.Commit()
	}
	if err != nil {
		return wrapStorage(op, err)
	}

	tokens, err := decodeTokens(raw)
	if err != nil {
		return err
	}

	next, changed := fn(tokens)
	if !changed {
		return tx.Commit()
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if _, err = tx.ExecContext(ctx, r.store.q.writeSession, username, string(encoded), now); err != nil {
		return wrapStorage(op, err)
	}

	if err = tx.Commit(); err != nil {
		return wrapStorage(op, err)
	}
	return nil
}

func decodeTokens(raw string) ([]string, error) {
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, wrapStorage("decode sessions", err)
	}
	return tokens, nil
}
