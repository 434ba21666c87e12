package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/goleak"

	"guidance-llm/internal/domain"
)

func TestMemoryResponseCacheTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryResponseCache(clock)
	ctx := context.Background()

	payload := []byte(`{"message":"hi"}`)
	if err := c.Set(ctx, "fp", payload, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	payload[0] = 'X'

	entry, ok, err := c.Get(ctx, "fp")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(`{"message":"hi"}`, string(entry.Payload)); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}

	clock.Advance(time.Minute)
	if _, ok, _ := c.Get(ctx, "fp"); ok {
		t.Fatalf("expected entry to expire at TTL")
	}
	if c.Len() != 0 {
		t.Fatalf("expected lazy expiry to delete the entry")
	}
}

func TestMemoryResponseCacheSweepAndFlush(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryResponseCache(clock)
	ctx := context.Background()
	_ = c.Set(ctx, "short", []byte("a"), time.Second)
	_ = c.Set(ctx, "long", []byte("b"), time.Hour)

	clock.Advance(2 * time.Second)
	if removed := c.Sweep(); removed != 1 {
		t.Fatalf("expected 1 swept entry, got %d", removed)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after flush")
	}
}

func TestMemoryResponseCacheSweeperStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryResponseCache(nil)
	c.StartSweeper(5 * time.Millisecond)
	c.StartSweeper(5 * time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	c.StopSweeper()
	c.StopSweeper()
}

type mockRedisCacheClient struct {
	store   map[string][]byte
	ttl     time.Duration
	getErr  error
	scanned []string
	deleted []string
}

func (m *mockRedisCacheClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	v, ok := m.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(v))
	return cmd
}

func (m *mockRedisCacheClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.store[key] = value.([]byte)
	m.ttl = expiration
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisCacheClient) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	cmd := redis.NewScanCmd(ctx, nil)
	var keys []string
	for k := range m.store {
		keys = append(keys, k)
	}
	m.scanned = append(m.scanned, match)
	cmd.SetVal(keys, 0)
	return cmd
}

func (m *mockRedisCacheClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.deleted = append(m.deleted, keys...)
	for _, k := range keys {
		delete(m.store, k)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestRedisResponseCache(t *testing.T) {
	clock := newFakeClock()
	mock := &mockRedisCacheClient{store: map[string][]byte{}}
	c := newRedisResponseCache(mock, clock, nil)
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		if _, ok, err := c.Get(ctx, "nope"); ok || err != nil {
			t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("set and get envelope", func(t *testing.T) {
		if err := c.Set(ctx, "fp", []byte(`{"a":1}`), time.Hour); err != nil {
			t.Fatalf("set: %v", err)
		}
		if mock.ttl != time.Hour {
			t.Fatalf("expected native ttl, got %v", mock.ttl)
		}
		var env domain.CacheEntry
		if err := json.Unmarshal(mock.store["guidance:cache:fp"], &env); err != nil {
			t.Fatalf("expected JSON envelope: %v", err)
		}
		if !env.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
			t.Fatalf("unexpected expiresAt %v", env.ExpiresAt)
		}
		entry, ok, err := c.Get(ctx, "fp")
		if err != nil || !ok || string(entry.Payload) != `{"a":1}` {
			t.Fatalf("unexpected get result %+v ok=%v err=%v", entry, ok, err)
		}
	})

	t.Run("expired envelope is absent", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		if _, ok, _ := c.Get(ctx, "fp"); ok {
			t.Fatalf("expected expired entry to be absent")
		}
	})

	t.Run("flush by prefix", func(t *testing.T) {
		if err := c.Flush(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}
		if len(mock.store) != 0 || mock.scanned[0] != "guidance:cache:*" {
			t.Fatalf("expected prefix flush, store=%v scanned=%v", mock.store, mock.scanned)
		}
	})

	t.Run("redis error surfaces", func(t *testing.T) {
		mock.getErr = errors.New("conn refused")
		if _, _, err := c.Get(ctx, "fp"); err == nil {
			t.Fatalf("expected error")
		}
		mock.getErr = nil
	})
}
