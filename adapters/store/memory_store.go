package store

import (
	"context"
	"sync"

	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/ports"
)

var (
	_ ports.Registry      = (*MemoryRegistry)(nil)
	_ ports.SessionLister = (*MemoryRegistry)(nil)
)

// sessionList is one principal's refresh tokens, oldest first.
// tokens is replaced, never mutated in place, so a slice handed to a reader stays consistent.
type sessionList struct {
	mu     sync.RWMutex
	tokens []string
}

// MemoryRegistry is an in-memory implementation of the Registry interface.
// Each principal has its own lock, so writers for different principals never contend.
type MemoryRegistry struct {
	mu    sync.Mutex
	lists map[string]*sessionList
	limit int
}

// NewMemoryRegistry creates a new in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		lists: make(map[string]*sessionList),
		limit: core.MaxRefreshSessions,
	}
}

func (r *MemoryRegistry) list(username string, create bool) *sessionList {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lists[username]
	if !ok && create {
		l = &sessionList{}
		r.lists[username] = l
	}
	return l
}

// Register appends token and evicts the oldest entries over the limit
func (r *MemoryRegistry) Register(ctx context.Context, username, token string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapStorage("register", err)
	}

	l := r.list(username, true)
	l.mu.Lock()
	defer l.mu.Unlock()

	next, evicted := Append(l.tokens, token, r.limit)
	l.tokens = next
	return evicted, nil
}

// IsActive reports whether token is in the principal's list
func (r *MemoryRegistry) IsActive(ctx context.Context, username, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrapStorage("is active", err)
	}

	l := r.list(username, false)
	if l == nil {
		return false, nil
	}

	l.mu.RLock()
	tokens := l.tokens
	l.mu.RUnlock()

	return contains(tokens, token), nil
}

// Revoke removes the first entry equal to token
func (r *MemoryRegistry) Revoke(ctx context.Context, username, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrapStorage("revoke", err)
	}

	l := r.list(username, false)
	if l == nil {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next, removed := without(l.tokens, token)
	l.tokens = next
	return removed, nil
}

// Sessions returns a copy of the principal's tokens, oldest first
func (r *MemoryRegistry) Sessions(ctx context.Context, username string) ([]string, error) {
	l := r.list(username, false)
	if l == nil {
		return nil, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]string(nil), l.tokens...), nil
}

// Clear removes all sessions.
// This is useful for testing to reset the registry between tests.
func (r *MemoryRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lists = make(map[string]*sessionList)
}
