// Package resultcache tracks, per translated batch, which statement
// indices have already been applied — so a caller retrying a
// TranslateMany batch after a partial failure can resume after the last
// committed statement instead of re-running the whole batch.
package resultcache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sqlmongo:batch:"

// Cache is a thin wrapper over a go-redis client scoped to batch
// bookkeeping keys.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing go-redis client. ttl bounds how long a batch's
// progress is remembered; zero means no expiry.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func batchKey(batchID string) string {
	return keyPrefix + batchID
}

// MarkApplied records that statement index idx of batchID has been
// committed against the database.
func (c *Cache) MarkApplied(ctx context.Context, batchID string, idx int) error {
	key := batchKey(batchID)
	if err := c.rdb.SAdd(ctx, key, idx).Err(); err != nil {
		return fmt.Errorf("resultcache: mark applied: %w", err)
	}
	if c.ttl > 0 {
		c.rdb.Expire(ctx, key, c.ttl)
	}
	return nil
}

// AppliedIndices returns every statement index already marked applied for
// batchID.
func (c *Cache) AppliedIndices(ctx context.Context, batchID string) (map[int]bool, error) {
	members, err := c.rdb.SMembers(ctx, batchKey(batchID)).Result()
	if err != nil {
		if err == redis.Nil {
			return map[int]bool{}, nil
		}
		return nil, fmt.Errorf("resultcache: applied indices: %w", err)
	}
	out := make(map[int]bool, len(members))
	for _, m := range members {
		idx, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		out[idx] = true
	}
	return out, nil
}

// Clear forgets a batch's progress, once it has fully committed or has
// been abandoned.
func (c *Cache) Clear(ctx context.Context, batchID string) error {
	if err := c.rdb.Del(ctx, batchKey(batchID)).Err(); err != nil {
		return fmt.Errorf("resultcache: clear: %w", err)
	}
	return nil
}
