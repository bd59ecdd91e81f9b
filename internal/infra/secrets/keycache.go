package secrets

import (
	"context"
	"sync"
	"time"
)

// KeyCache is a time-bounded cache around a KeyProvider. It is an explicitly
// scoped object handed to the validator host rather than process-global
// state, so two gateways in one process never share a stale key.
type KeyCache struct {
	provider KeyProvider
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	key       []byte
	fetchedAt time.Time
}

type KeyCacheOption func(*KeyCache)

func WithKeyCacheClock(now func() time.Time) KeyCacheOption {
	return func(c *KeyCache) {
		c.now = now
	}
}

func NewKeyCache(provider KeyProvider, ttl time.Duration, opts ...KeyCacheOption) *KeyCache {
	c := &KeyCache{
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SigningKey returns the cached key while fresh and refetches past the TTL.
// A failed refresh does not fall back to the stale key; callers see the
// fetch error.
func (c *KeyCache) SigningKey(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.key, nil
	}

	key, err := c.provider.SigningKey(ctx)
	if err != nil {
		return nil, err
	}

	c.key = key
	c.fetchedAt = c.now()
	return key, nil
}
