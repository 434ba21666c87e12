package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"guidance-llm/internal/domain"
)

// ResponseCache guarda respuestas por fingerprint con TTL. Las entradas vencidas se tratan como ausentes.
// Escrituras last-writer-wins.
type ResponseCache interface {
	Get(ctx context.Context, fingerprint string) (domain.CacheEntry, bool, error)
	Set(ctx context.Context, fingerprint string, payload []byte, ttl time.Duration) error
	Flush(ctx context.Context) error
}

// MemoryResponseCache expira en lectura y, si se arranca el barrido, tambien periodicamente.
type MemoryResponseCache struct {
	clock Clock

	mu    sync.Mutex
	items map[string]domain.CacheEntry

	sweepMu   sync.Mutex
	sweepStop chan struct{}
	sweepDone chan struct{}
}

func NewMemoryResponseCache(clock Clock) *MemoryResponseCache {
	return &MemoryResponseCache{
		clock: clockOrSystem(clock),
		items: make(map[string]domain.CacheEntry),
	}
}

func (c *MemoryResponseCache) Get(_ context.Context, fingerprint string) (domain.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[fingerprint]
	if !ok {
		return domain.CacheEntry{}, false, nil
	}
	if entry.Expired(c.clock.Now()) {
		delete(c.items, fingerprint)
		return domain.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

func (c *MemoryResponseCache) Set(_ context.Context, fingerprint string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[fingerprint] = domain.CacheEntry{
		Fingerprint: fingerprint,
		Payload:     stored,
		ExpiresAt:   c.clock.Now().Add(ttl),
	}
	return nil
}

func (c *MemoryResponseCache) Flush(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]domain.CacheEntry)
	return nil
}

// Len devuelve la cantidad de entradas (incluidas las vencidas aun no barridas).
func (c *MemoryResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Sweep elimina las entradas vencidas y devuelve cuantas borro.
func (c *MemoryResponseCache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.items {
		if e.Expired(now) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// StartSweeper lanza la goroutine de barrido; StopSweeper la detiene y espera.
func (c *MemoryResponseCache) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.sweepStop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.sweepStop = stop
	c.sweepDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

func (c *MemoryResponseCache) StopSweeper() {
	c.sweepMu.Lock()
	stop := c.sweepStop
	done := c.sweepDone
	c.sweepStop = nil
	c.sweepDone = nil
	c.sweepMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

type redisCacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisResponseCache struct {
	client redisCacheClient
	clock  Clock
	prefix string
	logger *zap.Logger
}

// NewRedisResponseCache guarda un sobre JSON con expiresAt ademas del TTL nativo de Redis.
func NewRedisResponseCache(client *redis.Client, clock Clock, logger *zap.Logger) ResponseCache {
	if client == nil {
		return nil
	}
	return newRedisResponseCache(client, clock, logger)
}

func newRedisResponseCache(client redisCacheClient, clock Clock, logger *zap.Logger) *redisResponseCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisResponseCache{
		client: client,
		clock:  clockOrSystem(clock),
		prefix: "guidance:cache:",
		logger: logger,
	}
}

func (c *redisResponseCache) Get(ctx context.Context, fingerprint string) (domain.CacheEntry, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("redis get: %w", err)
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("discarding corrupt cache entry", zap.String("fingerprint", fingerprint), zap.Error(err))
		return domain.CacheEntry{}, false, nil
	}
	if entry.Expired(c.clock.Now()) {
		return domain.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

func (c *redisResponseCache) Set(ctx context.Context, fingerprint string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	entry := domain.CacheEntry{
		Fingerprint: fingerprint,
		Payload:     payload,
		ExpiresAt:   c.clock.Now().Add(ttl),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.client.Set(ctx, c.prefix+fingerprint, raw, ttl).Err()
}

func (c *redisResponseCache) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
