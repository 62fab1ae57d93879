package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned when another submission holds the same key.
var ErrInFlight = errors.New("idempotency: submission already in progress")

// Guard serializes work per key across requests.
type Guard interface {
	// Acquire takes the lock for key until release is called or ttl elapses.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// HashKey turns a caller-supplied token into a lock key that never stores the token itself.
func HashKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Connect initializes a Redis client from URL or host:port input.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard holds locks as SET NX keys so concurrent API instances agree.
type RedisGuard struct {
	client *redis.Client
	prefix string
}

func NewRedisGuard(client *redis.Client, prefix string) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := g.prefix + key
	owner := uuid.NewString()

	ok, err := g.client.SetNX(ctx, redisKey, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
	}
	if !ok {
		return nil, ErrInFlight
	}

	return func() {
		// the request context may already be cancelled
		_ = releaseScript.Run(context.Background(), g.client, []string{redisKey}, owner).Err()
	}, nil
}

// MemoryGuard is the single-process fallback used when Redis is not configured.
type MemoryGuard struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]time.Time), nowFn: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFn()
	if until, ok := g.held[key]; ok && now.Before(until) {
		return nil, ErrInFlight
	}
	until := now.Add(ttl)
	g.held[key] = until

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			if g.held[key].Equal(until) {
				delete(g.held, key)
			}
			g.mu.Unlock()
		})
	}, nil
}
