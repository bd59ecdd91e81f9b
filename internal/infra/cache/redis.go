package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss reports that no verified identity is cached for the token.
var ErrCacheMiss = errors.New("cache miss")

// CachedIdentity is the verified identity stored for a token that already
// passed signature verification, so hot tokens skip the key fetch and HMAC.
type CachedIdentity struct {
	Subject     string `json:"subject"`
	DisplayName string `json:"display_name"`
}

// OutcomeCache stores verified identities keyed by the sha256 hex digest of
// the raw token. Tokens themselves are never written to the cache.
type OutcomeCache interface {
	Get(ctx context.Context, tokenHash string) (*CachedIdentity, error)
	Set(ctx context.Context, tokenHash string, value *CachedIdentity, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
}

func NewRedisClient(url string, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opt.PoolSize = poolSize

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewOutcomeCache(client *redis.Client) OutcomeCache {
	return &redisCache{client: client}
}

func cacheKey(tokenHash string) string {
	return fmt.Sprintf("edge:jwt:%s", tokenHash)
}

func (r *redisCache) Get(ctx context.Context, tokenHash string) (*CachedIdentity, error) {
	val, err := r.client.Get(ctx, cacheKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var identity CachedIdentity
	if err := json.Unmarshal([]byte(val), &identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached identity: %w", err)
	}

	return &identity, nil
}

func (r *redisCache) Set(ctx context.Context, tokenHash string, value *CachedIdentity, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cached identity: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(tokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set redis cache: %w", err)
	}

	return nil
}
