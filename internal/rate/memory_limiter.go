package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: misma ventana fija que RedisLimiter pero in-process,
// para deploys sin Redis.
type MemoryLimiter struct {
	cache  *gocache.Cache
	max    int64
	window time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  gocache.New(window, window),
		max:    int64(max),
		window: window,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	winStart := time.Now().UTC().Truncate(l.window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())

	var hits int64
	if err := l.cache.Add(k, int64(1), l.window); err == nil {
		hits = 1
	} else {
		n, err := l.cache.IncrementInt64(k, 1)
		if err != nil {
			// la key expiró entre Add e Increment: ventana nueva
			l.cache.Set(k, int64(1), l.window)
			n = 1
		}
		hits = n
	}

	return result(hits, l.max, winStart.Add(l.window)), nil
}
