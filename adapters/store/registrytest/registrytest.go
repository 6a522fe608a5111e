// Package registrytest is a contract test suite for ports.Registry implementations.
package registrytest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/ports"
)

// Factory returns an empty registry for one subtest
type Factory func(t *testing.T) ports.Registry

func tokens(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-token-%d", prefix, i+1)
	}
	return out
}

// Run exercises the full Registry contract against registries built by newRegistry
func Run(t *testing.T, newRegistry Factory) {
	t.Run("RegisterThenIsActive", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)

		active, err := r.IsActive(ctx, "alice", "r1")
		require.NoError(t, err)
		assert.False(t, active)

		evicted, err := r.Register(ctx, "alice", "r1")
		require.NoError(t, err)
		assert.Empty(t, evicted)

		active, err = r.IsActive(ctx, "alice", "r1")
		require.NoError(t, err)
		assert.True(t, active)

		active, err = r.IsActive(ctx, "bob", "r1")
		require.NoError(t, err)
		assert.False(t, active, "membership is per principal")
	})

	t.Run("SixthRegistrationEvictsOldest", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		issued := tokens("bob", core.MaxRefreshSessions+1)

		for _, tok := range issued[:core.MaxRefreshSessions] {
			evicted, err := r.Register(ctx, "bob", tok)
			require.NoError(t, err)
			require.Empty(t, evicted)
		}
		for _, tok := range issued[:core.MaxRefreshSessions] {
			active, err := r.IsActive(ctx, "bob", tok)
			require.NoError(t, err)
			require.True(t, active, tok)
		}

		evicted, err := r.Register(ctx, "bob", issued[core.MaxRefreshSessions])
		require.NoError(t, err)
		assert.Equal(t, []string{issued[0]}, evicted)

		active, err := r.IsActive(ctx, "bob", issued[0])
		require.NoError(t, err)
		assert.False(t, active)

		for _, tok := range issued[1:] {
			active, err := r.IsActive(ctx, "bob", tok)
			require.NoError(t, err)
			assert.True(t, active, tok)
		}
	})

	t.Run("EvictionFollowsIssuanceOrderNotUse", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		issued := tokens("carol", core.MaxRefreshSessions+2)

		for _, tok := range issued[:core.MaxRefreshSessions] {
			_, err := r.Register(ctx, "carol", tok)
			require.NoError(t, err)
		}

		// Reading the oldest entry must not protect it from eviction.
		for i := 0; i < 3; i++ {
			_, err := r.IsActive(ctx, "carol", issued[0])
			require.NoError(t, err)
		}

		evicted, err := r.Register(ctx, "carol", issued[5])
		require.NoError(t, err)
		assert.Equal(t, []string{issued[0]}, evicted)

		evicted, err = r.Register(ctx, "carol", issued[6])
		require.NoError(t, err)
		assert.Equal(t, []string{issued[1]}, evicted)
	})

	t.Run("RevokeRemovesOnlyThatSession", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)

		for _, tok := range []string{"a1", "a2", "a3"} {
			_, err := r.Register(ctx, "alice", tok)
			require.NoError(t, err)
		}
		_, err := r.Register(ctx, "bob", "a2")
		require.NoError(t, err)

		removed, err := r.Revoke(ctx, "alice", "a2")
		require.NoError(t, err)
		assert.True(t, removed)

		for tok, want := range map[string]bool{"a1": true, "a2": false, "a3": true} {
			active, err := r.IsActive(ctx, "alice", tok)
			require.NoError(t, err)
			assert.Equal(t, want, active, tok)
		}

		active, err := r.IsActive(ctx, "bob", "a2")
		require.NoError(t, err)
		assert.True(t, active, "revoke must not touch other principals")
	})

	t.Run("RevokeNotFound", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)

		removed, err := r.Revoke(ctx, "nobody", "missing")
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = r.Register(ctx, "alice", "a1")
		require.NoError(t, err)

		removed, err = r.Revoke(ctx, "alice", "a1")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = r.Revoke(ctx, "alice", "a1")
		require.NoError(t, err)
		assert.False(t, removed, "second revoke finds nothing")
	})

	t.Run("RevokeFreesCapacity", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		issued := tokens("dave", core.MaxRefreshSessions+1)

		for _, tok := range issued[:core.MaxRefreshSessions] {
			_, err := r.Register(ctx, "dave", tok)
			require.NoError(t, err)
		}

		removed, err := r.Revoke(ctx, "dave", issued[2])
		require.NoError(t, err)
		require.True(t, removed)

		evicted, err := r.Register(ctx, "dave", issued[5])
		require.NoError(t, err)
		assert.Empty(t, evicted)

		active, err := r.IsActive(ctx, "dave", issued[0])
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("ConcurrentRegisterKeepsEverySession", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		issued := tokens("erin", core.MaxRefreshSessions)

		var wg sync.WaitGroup
		errs := make(chan error, len(issued))
		for _, tok := range issued {
			wg.Add(1)
			go func(tok string) {
				defer wg.Done()
				_, err := r.Register(ctx, "erin", tok)
				errs <- err
			}(tok)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		for _, tok := range issued {
			active, err := r.IsActive(ctx, "erin", tok)
			require.NoError(t, err)
			assert.True(t, active, "lost update dropped %s", tok)
		}
	})

	t.Run("ConcurrentRegisterRespectsCap", func(t *testing.T) {
		ctx := context.Background()
		r := newRegistry(t)
		issued := tokens("frank", 4*core.MaxRefreshSessions)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			evicted []string
		)
		for _, tok := range issued {
			wg.Add(1)
			go func(tok string) {
				defer wg.Done()
				out, err := r.Register(ctx, "frank", tok)
				assert.NoError(t, err)
				mu.Lock()
				evicted = append(evicted, out...)
				mu.Unlock()
			}(tok)
		}
		wg.Wait()

		assert.Len(t, evicted, len(issued)-core.MaxRefreshSessions)

		active := 0
		for _, tok := range issued {
			ok, err := r.IsActive(ctx, "frank", tok)
			require.NoError(t, err)
			if ok {
				active++
			}
		}
		assert.Equal(t, core.MaxRefreshSessions, active)
	})
}
