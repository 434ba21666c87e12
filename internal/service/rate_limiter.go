package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// UserRateLimiter limita solicitudes de guia por usuario. Ante errores del backend deja pasar.
type UserRateLimiter interface {
	Allow(ctx context.Context, userID string) bool
}

const redisAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisRateLimiter es una ventana fija compartida entre instancias.
type redisRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

func NewRedisRateLimiter(client *redis.Client, window time.Duration, max int) UserRateLimiter {
	if client == nil {
		return nil
	}
	return newRedisRateLimiter(client, window, max)
}

func newRedisRateLimiter(client redisEvaler, window time.Duration, max int) *redisRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "guidance:rl:",
	}
}

func (l *redisRateLimiter) Allow(ctx context.Context, userID string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key := strings.ToLower(strings.TrimSpace(userID))
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisAllowScript, []string{l.prefix + key}, seconds).Int()
	if err != nil {
		return true
	}
	return count <= l.max
}

// memoryRateLimiter usa un token bucket por usuario. Los buckets inactivos expiran y se barren
// desde Allow, sin goroutine propia.
type memoryRateLimiter struct {
	mu        sync.Mutex
	buckets   *cache.Cache
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

func NewMemoryRateLimiter(window time.Duration, max int) UserRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	idle := 10 * window
	return &memoryRateLimiter{
		buckets:   cache.New(idle, 0),
		limit:     rate.Every(window / time.Duration(max)),
		burst:     max,
		idle:      idle,
		lastSweep: time.Now(),
	}
}

func (l *memoryRateLimiter) Allow(_ context.Context, userID string) bool {
	key := strings.ToLower(strings.TrimSpace(userID))
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if now := time.Now(); now.Sub(l.lastSweep) >= l.idle {
		l.buckets.DeleteExpired()
		l.lastSweep = now
	}
	var limiter *rate.Limiter
	if v, ok := l.buckets.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
	}
	l.buckets.SetDefault(key, limiter)
	return limiter.Allow()
}
