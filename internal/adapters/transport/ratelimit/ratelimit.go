// Package ratelimit keeps one token bucket per client address in a bounded
// LRU cache. It backs both the HTTP and the gRPC limiters.
package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter *rate.Limiter
	last    time.Time
}

type PerKey struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	visitors *lru.Cache[string, *visitor]
}

// New allows limit events per second with the given burst for each key.
// Keys idle for longer than ttl are evicted by Sweep.
func New(limit, burst, cacheSize int, ttl time.Duration) *PerKey {
	if cacheSize <= 0 {
		cacheSize = 10_000
	}
	visitors, _ := lru.New[string, *visitor](cacheSize)
	return &PerKey{
		limit:    rate.Limit(limit),
		burst:    burst,
		ttl:      ttl,
		visitors: visitors,
	}
}

func (p *PerKey) Allow(key string) bool {
	// Берём/создаём visitor для ключа
	p.mu.Lock()
	v, ok := p.visitors.Get(key)
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.visitors.Add(key, v)
	}
	v.last = time.Now()
	p.mu.Unlock()

	return v.limiter.Allow()
}

// Sweep drops keys idle for longer than ttl.
func (p *PerKey) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, key := range p.visitors.Keys() {
		if v, ok := p.visitors.Peek(key); ok && time.Since(v.last) > p.ttl {
			p.visitors.Remove(key)
			n++
		}
	}
	return n
}

func (p *PerKey) Len() int {
	return p.visitors.Len()
}

// Run sweeps every ttl until ctx is done.
func (p *PerKey) Run(ctx context.Context) {
	if p.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(p.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep()
		}
	}
}
