package throttle

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttler admits at most one action per chat within a window.
type Throttler interface {
	Allow(ctx context.Context, chatID int64) (bool, error)
}

type setNXClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type RedisThrottler struct {
	client    setNXClient
	window    time.Duration
	keyPrefix string
}

func NewRedisThrottler(client setNXClient, window time.Duration) *RedisThrottler {
	return &RedisThrottler{client: client, window: window, keyPrefix: "throttle:chat:"}
}

func (t *RedisThrottler) Allow(ctx context.Context, chatID int64) (bool, error) {
	if t.window <= 0 {
		return true, nil
	}
	return t.client.SetNX(ctx, t.keyPrefix+strconv.FormatInt(chatID, 10), 1, t.window).Result()
}

// MemoryThrottler is used when no Redis address is configured.
type MemoryThrottler struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[int64]time.Time
	now    func() time.Time
}

func NewMemoryThrottler(window time.Duration) *MemoryThrottler {
	return &MemoryThrottler{window: window, seen: map[int64]time.Time{}, now: time.Now}
}

func (t *MemoryThrottler) Allow(_ context.Context, chatID int64) (bool, error) {
	if t.window <= 0 {
		return true, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.seen[chatID]; ok && now.Sub(last) < t.window {
		return false, nil
	}
	t.seen[chatID] = now

	if len(t.seen) > 10000 {
		for id, at := range t.seen {
			if now.Sub(at) >= t.window {
				delete(t.seen, id)
			}
		}
	}
	return true, nil
}
