package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

var errContextDeadline = errors.New("redis down")

func TestMemoryCacheSetGetDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "persona:elara", `{"name":"elara"}`, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := c.Get(ctx, "persona:elara")
	if err != nil || !ok || val != `{"name":"elara"}` {
		t.Fatalf("expected a hit, got val=%q ok=%v err=%v", val, ok, err)
	}

	if err := c.Delete(ctx, "persona:elara"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, _ = c.Get(ctx, "persona:elara")
	if ok {
		t.Fatalf("expected a miss after delete")
	}
}

func TestMemoryCacheExpiresOnRead(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected the entry to have expired")
	}
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", 0)
	val, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || val != "v" {
		t.Fatalf("expected a zero-TTL entry to persist, got val=%q ok=%v err=%v", val, ok, err)
	}
}

func TestMemoryRateLimiterAllowsUpToMaxThenBlocks(t *testing.T) {
	l := NewMemoryRateLimiter(time.Minute, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow(ctx, "user-1")
		if err != nil || !allowed {
			t.Fatalf("expected request %d to be allowed, got allowed=%v err=%v", i, allowed, err)
		}
	}
	allowed, err := l.Allow(ctx, "user-1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected the third request in the window to be blocked")
	}
}

func TestMemoryRateLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemoryRateLimiter(time.Minute, 1)
	ctx := context.Background()

	allowedA, _ := l.Allow(ctx, "a")
	allowedB, _ := l.Allow(ctx, "b")
	if !allowedA || !allowedB {
		t.Fatalf("expected independent quotas per key, got a=%v b=%v", allowedA, allowedB)
	}
}

func TestMemoryRateLimiterResetsAfterWindow(t *testing.T) {
	l := NewMemoryRateLimiter(time.Millisecond, 1)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "k")
	time.Sleep(5 * time.Millisecond)
	allowed, err := l.Allow(ctx, "k")
	if err != nil || !allowed {
		t.Fatalf("expected the window to reset, got allowed=%v err=%v", allowed, err)
	}
}

type mockRedisEvaler struct {
	lastKeys []string
	lastArgs []interface{}
	result   int64
	err      error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func TestRedisRateLimiterAllowsWithinMax(t *testing.T) {
	mock := &mockRedisEvaler{result: 2}
	l := NewRedisRateLimiter(mock, time.Minute, 3)

	allowed, err := l.Allow(context.Background(), " User@Example.com ")
	if err != nil || !allowed {
		t.Fatalf("expected allow when count <= max, got allowed=%v err=%v", allowed, err)
	}
	if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "ratelimit:user@example.com" {
		t.Fatalf("expected normalized prefixed key, got %+v", mock.lastKeys)
	}
}

func TestRedisRateLimiterBlocksOverMax(t *testing.T) {
	l := NewRedisRateLimiter(&mockRedisEvaler{result: 4}, time.Minute, 3)
	allowed, err := l.Allow(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected deny when count exceeds max")
	}
}

func TestRedisRateLimiterFailsOpenOnError(t *testing.T) {
	l := NewRedisRateLimiter(&mockRedisEvaler{err: errContextDeadline}, time.Minute, 3)
	allowed, err := l.Allow(context.Background(), "user-1")
	if err == nil {
		t.Fatalf("expected the error to be surfaced")
	}
	if !allowed {
		t.Fatalf("expected fail-open on limiter errors")
	}
}
