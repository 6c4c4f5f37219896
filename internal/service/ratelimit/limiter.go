package ratelimit

import (
    "sync"
    "time"
)

type bucket struct {
    tokens float64
    last   time.Time
}

// Limiter is a keyed token bucket. Keys are sender addresses.
type Limiter struct {
    mu         sync.Mutex
    m          map[string]*bucket
    capacity   float64
    refillRate float64 // tokens per second
    now        func() time.Time
}

func New(refillPerSec float64, burst int) *Limiter {
    return &Limiter{
        m:          make(map[string]*bucket),
        capacity:   float64(burst),
        refillRate: refillPerSec,
        now:        time.Now,
    }
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
    now := l.now()
    l.mu.Lock()
    defer l.mu.Unlock()

    b, ok := l.m[key]
    if !ok {
        b = &bucket{tokens: l.capacity, last: now}
        l.m[key] = b
    }
    // refill
    if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
        b.tokens += elapsed * l.refillRate
        if b.tokens > l.capacity {
            b.tokens = l.capacity
        }
        b.last = now
    }
    if b.tokens >= 1 {
        b.tokens--
        return true
    }
    return false
}

// Prune drops buckets that have been full for longer than idle, returning how many were removed.
func (l *Limiter) Prune(idle time.Duration) int {
    now := l.now()
    l.mu.Lock()
    defer l.mu.Unlock()

    n := 0
    for k, b := range l.m {
        if now.Sub(b.last) > idle {
            delete(l.m, k)
            n++
        }
    }
    return n
}
