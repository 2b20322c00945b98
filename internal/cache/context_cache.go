// Package cache provides the short-lived document-context store. Extracted
// document text is held under a generated id with a fixed TTL so follow-up
// questions can be answered without re-extracting; the durable no-TTL
// variant lives in the repo layer.
//
// The cache is an explicit service object constructed once at process start
// and passed to request handlers. Backing it with Redis keeps the eviction
// policy server-side and makes the store shareable across processes.
package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// ContextCache stores extracted document text keyed by document id, with a
// fixed expiry applied on write.
type ContextCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

// NewContextCache wraps client with the given TTL. A non-positive TTL falls
// back to one hour, matching the product's upload-and-query window.
func NewContextCache(client *redisv9.Client, ttl time.Duration) *ContextCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ContextCache{client: client, ttl: ttl}
}

// Put stores text under documentID for the configured TTL.
func (c *ContextCache) Put(ctx context.Context, documentID, text string) error {
	if err := c.client.Set(ctx, c.key(documentID), text, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set document context failed: %w", err)
	}
	return nil
}

// Get retrieves the text stored under documentID. The boolean reports
// whether the key was present; an expired or never-stored id is a miss, not
// an error.
func (c *ContextCache) Get(ctx context.Context, documentID string) (string, bool, error) {
	raw, err := c.client.Get(ctx, c.key(documentID)).Result()
	if err == redisv9.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get document context failed: %w", err)
	}
	return raw, true, nil
}

// NewRedisClient dials Redis and verifies connectivity with a bounded ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redisv9.Client, error) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}
	return client, nil
}

func (c *ContextCache) key(documentID string) string {
	return "doc:context:" + documentID
}
