package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/ports"
)

var (
	_ ports.Registry      = (*RedisRegistry)(nil)
	_ ports.SessionLister = (*RedisRegistry)(nil)
)

// DefaultRedisPrefix namespaces the per-principal session lists
const DefaultRedisPrefix = "keeper:sessions:"

// registerScript appends a token and pops from the head until the list fits.
// KEYS[1] session list, ARGV[1] token, ARGV[2] limit, ARGV[3] list ttl in ms (0 keeps no ttl).
const registerScript = `
redis.call("RPUSH", KEYS[1], ARGV[1])
local limit = tonumber(ARGV[2])
local evicted = {}
while redis.call("LLEN", KEYS[1]) > limit do
  table.insert(evicted, redis.call("LPOP", KEYS[1]))
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return evicted
`

var registerLua = redis.NewScript(registerScript)

// RedisRegistry is a Redis implementation of the Registry interface.
// Every principal owns one list; each mutation is a single atomic command or script.
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
	limit  int
	ttl    time.Duration
}

// NewRedisRegistry creates a new Redis registry. ttl is applied to a principal's
// list on every registration so abandoned lists expire with their newest token;
// pass the refresh token lifetime, or zero to keep lists forever.
func NewRedisRegistry(client redis.UniversalClient, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		prefix: DefaultRedisPrefix,
		limit:  core.MaxRefreshSessions,
		ttl:    ttl,
	}
}

func (s *RedisRegistry) key(username string) string {
	return s.prefix + username
}

// Register appends token to the principal's list and trims it to the limit
func (s *RedisRegistry) Register(ctx context.Context, username, token string) ([]string, error) {
	evicted, err := registerLua.Run(ctx, s.client,
		[]string{s.key(username)},
		token, s.limit, s.ttl.Milliseconds(),
	).StringSlice()
	if err != nil {
		return nil, wrapStorage("register", err)
	}
	if len(evicted) == 0 {
		return nil, nil
	}
	return evicted, nil
}

// IsActive reports whether token is in the principal's list
func (s *RedisRegistry) IsActive(ctx context.Context, username, token string) (bool, error) {
	tokens, err := s.client.LRange(ctx, s.key(username), 0, -1).Result()
	if err != nil {
		return false, wrapStorage("is active", err)
	}
	return contains(tokens, token), nil
}

// Revoke removes one occurrence of token from the principal's list
func (s *RedisRegistry) Revoke(ctx context.Context, username, token string) (bool, error) {
	removed, err := s.client.LRem(ctx, s.key(username), 1, token).Result()
	if err != nil {
		return false, wrapStorage("revoke", err)
	}
	return removed > 0, nil
}

// Sessions returns the principal's tokens, oldest first
func (s *RedisRegistry) Sessions(ctx context.Context, username string) ([]string, error) {
	tokens, err := s.client.LRange(ctx, s.key(username), 0, -1).Result()
	if err != nil {
		return nil, wrapStorage("sessions", err)
	}
	return tokens, nil
}
