// Package cache holds short-lived keys used to suppress duplicate work.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/port"
)

// releaseScript deletes a key only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard implements port.TriggerGuard with SET NX PX.
//
// Keys are stored as:
//
//	<prefix>guard:<key>
type RedisGuard struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisGuard creates a guard on client. prefix defaults to "workflow:".
func NewRedisGuard(client *redis.Client, prefix string, logger *zap.Logger) *RedisGuard {
	if prefix == "" {
		prefix = "workflow:"
	}
	return &RedisGuard{
		client: client,
		prefix: prefix,
		logger: logger,
		tokens: make(map[string]string),
	}
}

func (g *RedisGuard) redisKey(key string) string {
	return g.prefix + "guard:" + key
}

// Acquire sets key unless it already exists
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.redisKey(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire guard %s: %w", key, err)
	}
	if ok {
		g.mu.Lock()
		g.tokens[key] = token
		g.mu.Unlock()
	}
	return ok, nil
}

// Release drops a key this guard acquired. Keys held by others are left alone.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	token, ok := g.tokens[key]
	delete(g.tokens, key)
	g.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, g.client, []string{g.redisKey(key)}, token).Err(); err != nil && err != redis.Nil {
		g.logger.Warn("Failed to release guard", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to release guard %s: %w", key, err)
	}
	return nil
}

var _ port.TriggerGuard = (*RedisGuard)(nil)
