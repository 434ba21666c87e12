package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/goleak"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
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

func TestRedisRateLimiterAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisRateLimiter
		if !l.Allow(ctx, "u1") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty user rejected", func(t *testing.T) {
		l := newRedisRateLimiter(&mockRedisEvaler{result: 1}, time.Minute, 3)
		if l.Allow(ctx, "   ") {
			t.Fatalf("expected empty user to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := newRedisRateLimiter(mock, 2*time.Minute, 3)
		if !l.Allow(ctx, " U1 ") {
			t.Fatalf("expected allow")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "guidance:rl:u1" {
			t.Fatalf("unexpected key %v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected window seconds arg, got %v", mock.lastArgs)
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := newRedisRateLimiter(&mockRedisEvaler{result: 4}, time.Minute, 3)
		if l.Allow(ctx, "u1") {
			t.Fatalf("expected deny")
		}
	})

	t.Run("backend error fails open", func(t *testing.T) {
		l := newRedisRateLimiter(&mockRedisEvaler{err: errors.New("redis down")}, time.Minute, 3)
		if !l.Allow(ctx, "u1") {
			t.Fatalf("expected fail-open on redis error")
		}
	})
}

func TestMemoryRateLimiterAllow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx := context.Background()
	l := NewMemoryRateLimiter(time.Hour, 2)

	if !l.Allow(ctx, "u1") || !l.Allow(ctx, "U1") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow(ctx, "u1") {
		t.Fatalf("third request inside the window should be denied")
	}
	if !l.Allow(ctx, "u2") {
		t.Fatalf("other users have their own bucket")
	}
	if l.Allow(ctx, "") {
		t.Fatalf("empty user should be denied")
	}
}

func TestMemoryRateLimiterSweepsIdleBuckets(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	l := NewMemoryRateLimiter(time.Millisecond, 1).(*memoryRateLimiter)
	ctx := context.Background()

	l.Allow(ctx, "u1")
	l.Allow(ctx, "u2")
	time.Sleep(20 * time.Millisecond)
	l.Allow(ctx, "u3")

	if n := l.buckets.ItemCount(); n != 1 {
		t.Fatalf("expected idle buckets swept, %d remain", n)
	}
}
