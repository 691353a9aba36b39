package redis

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"lingo-quiz/internal/resource"
)

// DocumentCache is a resource.Source that keeps raw content documents in
// Redis and falls back to the wrapped source on a miss.
// Documents are stored as: SET {prefix}doc:{path} {bytes} EX ttl
// Missing documents are never cached.
type DocumentCache struct {
	client *redis.Client
	source resource.Source
	ttl    time.Duration
	prefix string
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewDocumentCache(client *redis.Client, source resource.Source, ttl time.Duration, prefix string) *DocumentCache {
	return &DocumentCache{
		client: client,
		source: source,
		ttl:    ttl,
		prefix: prefix,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *DocumentCache) Get(ctx context.Context, path string) ([]byte, error) {
	key := c.key(path)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "redis: document cache read failed", "path", path, "error", err)
	}

	result, err, _ := c.sf.Do(path, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
			return data, nil
		}

		data, err := c.source.Get(ctx, path)
		if err != nil {
			return nil, err
		}

		if err := c.client.Set(ctx, key, data, c.ttlWithJitter()).Err(); err != nil {
			slog.WarnContext(ctx, "redis: document cache write failed", "path", path, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Purge drops every cached document and returns how many were removed.
func (c *DocumentCache) Purge(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"doc:*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, iter.Err()
}

func (c *DocumentCache) key(path string) string {
	return c.prefix + "doc:" + path
}

func (c *DocumentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
