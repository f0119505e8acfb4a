package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/heshamhussin961-design/family-tree/modules/family/domain/aggregates/member"
	"github.com/heshamhussin961-design/family-tree/pkg/composables"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores raw extraction payloads by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache accepts either a redis:// URL or a bare host:port address.
func NewRedisCache(addr, prefix string) (*RedisCache, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	return NewRedisCacheFromClient(redis.NewClient(opts), prefix), nil
}

func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "family:vision"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + ":" + k
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// CachedExtractor skips the model call when the same image was already
// extracted for the same branch by the same provider and model.
type CachedExtractor struct {
	next  Extractor
	cache Cache
	ttl   time.Duration
}

func NewCachedExtractor(next Extractor, cache Cache, ttl time.Duration) *CachedExtractor {
	return &CachedExtractor{next: next, cache: cache, ttl: ttl}
}

func (e *CachedExtractor) Provider() string { return e.next.Provider() }
func (e *CachedExtractor) Model() string    { return e.next.Model() }

func (e *CachedExtractor) Extract(ctx context.Context, img Image, branch string) ([]member.ExtractedRecord, error) {
	key := CacheKey(e.next.Provider(), e.next.Model(), branch, img.Data)
	logger := composables.UseLogger(ctx)

	if b, err := e.cache.Get(ctx, key); err == nil {
		var records []member.ExtractedRecord
		if jerr := json.Unmarshal(b, &records); jerr == nil {
			logger.WithField("image", img.Name).Debug("vision cache hit")
			return records, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		logger.WithError(err).Warn("vision cache read failed")
	}

	records, err := e.next.Extract(ctx, img, branch)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(records); err == nil {
		if err := e.cache.Set(ctx, key, b, e.ttl); err != nil {
			logger.WithFields(logrus.Fields{"image": img.Name}).WithError(err).Warn("vision cache write failed")
		}
	}
	return records, nil
}

func CacheKey(provider, model, branch string, data []byte) string {
	h := sha256.New()
	for _, part := range []string{provider, model, branch} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
