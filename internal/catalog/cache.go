package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/resilience"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete drops the given keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func codeKey(code string) string {
	return "catalog:product:code:" + strings.ToLower(strings.TrimSpace(code))
}

// CachedStore serves code lookups from Redis in front of another Store.
// Cache failures never fail a lookup; the breaker stops Redis calls while
// Redis is unhealthy.
type CachedStore struct {
	Store
	cache   *Cache
	breaker *resilience.Breaker
	logger  zerolog.Logger
}

// NewCachedStore wraps inner with a read-through code cache.
func NewCachedStore(inner Store, cache *Cache, breaker *resilience.Breaker, logger zerolog.Logger) *CachedStore {
	return &CachedStore{Store: inner, cache: cache, breaker: breaker, logger: logger}
}

func (s *CachedStore) ByCode(ctx context.Context, code string) (Product, error) {
	key := codeKey(code)
	if s.allow(ctx) {
		var cached Product
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		s.report(ctx, err)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_get_failed")
		} else if hit {
			return cached, nil
		}
	}

	p, err := s.Store.ByCode(ctx, code)
	if err != nil {
		return Product{}, err
	}
	if s.allow(ctx) {
		err := s.cache.SetJSON(ctx, key, p)
		s.report(ctx, err)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_set_failed")
		}
	}
	return p, nil
}

func (s *CachedStore) Update(ctx context.Context, p Product) (Product, error) {
	before, lookupErr := s.Store.ByID(ctx, p.ID)
	updated, err := s.Store.Update(ctx, p)
	if err != nil {
		return Product{}, err
	}
	keys := []string{codeKey(updated.Code)}
	if lookupErr == nil && !strings.EqualFold(before.Code, updated.Code) {
		keys = append(keys, codeKey(before.Code))
	}
	s.invalidate(ctx, keys...)
	return updated, nil
}

func (s *CachedStore) Create(ctx context.Context, p Product) (Product, error) {
	created, err := s.Store.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx, codeKey(created.Code))
	return created, nil
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if !s.allow(ctx) {
		return
	}
	err := s.cache.Delete(ctx, keys...)
	s.report(ctx, err)
	if err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("catalog_cache_invalidate_failed")
	}
}

func (s *CachedStore) allow(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	return s.breaker == nil || s.breaker.Allow(ctx)
}

func (s *CachedStore) report(ctx context.Context, err error) {
	if s.breaker != nil {
		s.breaker.Report(ctx, err == nil)
	}
}
