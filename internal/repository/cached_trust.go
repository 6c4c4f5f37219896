package repository

import (
	"context"
	"errors"
	"time"

	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/pkg/cache"
	"DefiGuard/pkg/config"
	applogger "DefiGuard/pkg/logger"
)

const trustKeyPrefix = "trust"

// CachedTrustProvider serves trust scores from cache and falls back to the
// wrapped provider on a miss. Cache failures never fail the lookup.
type CachedTrustProvider struct {
	next  domrepo.TrustProvider
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedTrustProvider(next domrepo.TrustProvider, c cache.Service, cfg *config.Config, l *applogger.Logger) *CachedTrustProvider {
	ttl := cfg.Redis.TrustTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedTrustProvider{next: next, cache: c, ttl: ttl, l: l}
}

func (p *CachedTrustProvider) TrustScore(ctx context.Context, address string) (float64, error) {
	key := trustKey(address)

	var score float64
	err := p.cache.Get(ctx, key, &score)
	if err == nil {
		return score, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		p.l.Warn("trust cache read failed", applogger.String("address", address), applogger.Error(err))
	}

	score, err = p.next.TrustScore(ctx, address)
	if err != nil {
		return 0, err
	}
	if err := p.cache.Set(ctx, key, score, p.ttl); err != nil {
		p.l.Warn("trust cache write failed", applogger.String("address", address), applogger.Error(err))
	}
	return score, nil
}

// Invalidate drops the cached score so the next lookup reads the chain.
func (p *CachedTrustProvider) Invalidate(ctx context.Context, address string) error {
	return p.cache.Delete(ctx, trustKey(address))
}

func trustKey(address string) string {
	if norm, err := NormalizeAddress(address); err == nil {
		address = norm
	}
	return cache.GenerateKey(trustKeyPrefix, address)
}
