package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeSetNX struct {
	keys map[string]bool
	ttl  time.Duration
	err  error
}

func (f *fakeSetNX) SetNX(_ context.Context, key string, _ interface{}, expiration time.Duration) *redis.BoolCmd {
	f.ttl = expiration
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if f.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func TestRedisThrottlerAllowsOncePerWindow(t *testing.T) {
	client := &fakeSetNX{keys: map[string]bool{}}
	throttler := NewRedisThrottler(client, time.Second)

	allowed, err := throttler.Allow(context.Background(), 55)
	if err != nil || !allowed {
		t.Fatalf("expected first call allowed, got allowed=%v err=%v", allowed, err)
	}
	allowed, err = throttler.Allow(context.Background(), 55)
	if err != nil || allowed {
		t.Fatalf("expected second call throttled, got allowed=%v err=%v", allowed, err)
	}
	if !client.keys["throttle:chat:55"] {
		t.Fatalf("unexpected keys: %v", client.keys)
	}
	if client.ttl != time.Second {
		t.Fatalf("expected ttl 1s, got %s", client.ttl)
	}

	allowed, _ = throttler.Allow(context.Background(), 56)
	if !allowed {
		t.Fatal("expected other chat to be allowed")
	}
}

func TestRedisThrottlerReturnsError(t *testing.T) {
	throttler := NewRedisThrottler(&fakeSetNX{keys: map[string]bool{}, err: errors.New("down")}, time.Second)
	if _, err := throttler.Allow(context.Background(), 1); err == nil {
		t.Fatal("expected redis error")
	}
}

func TestMemoryThrottlerWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	throttler := NewMemoryThrottler(time.Second)
	throttler.now = func() time.Time { return now }

	if ok, _ := throttler.Allow(context.Background(), 1); !ok {
		t.Fatal("expected first call allowed")
	}
	now = now.Add(500 * time.Millisecond)
	if ok, _ := throttler.Allow(context.Background(), 1); ok {
		t.Fatal("expected call inside window throttled")
	}
	now = now.Add(600 * time.Millisecond)
	if ok, _ := throttler.Allow(context.Background(), 1); !ok {
		t.Fatal("expected call after window allowed")
	}
}
