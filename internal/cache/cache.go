package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the de-dup store for the conversion worker. At-least-once
// delivery means a descriptor can be processed twice after a crash between
// doing the work and the ack reaching the broker; remembering completed
// source ids for a bounded window turns the duplicate run into an
// ack-and-skip instead of a second result blob.
type Cache struct {
	Redis     redis.UniversalClient
	Namespace string
	TTL       time.Duration
}

func NewCache(namespace string, ttl time.Duration, redisCl redis.UniversalClient) *Cache {
	return &Cache{
		Redis:     redisCl,
		Namespace: namespace,
		TTL:       ttl,
	}
}

// Seen reports whether the source id was already completed.
func (c *Cache) Seen(ctx context.Context, id string) (bool, error) {
	err := c.Redis.Get(ctx, c.Namespace+":"+id).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkDone records a completed source id for the configured window.
func (c *Cache) MarkDone(ctx context.Context, id string) error {
	return c.Redis.Set(ctx, c.Namespace+":"+id, "done", c.TTL).Err()
}

// Remove forgets a source id so its descriptor can be reprocessed.
func (c *Cache) Remove(ctx context.Context, id string) error {
	return c.Redis.Del(ctx, c.Namespace+":"+id).Err()
}

// Flush deletes all entries in the namespace.
func (c *Cache) Flush(ctx context.Context) error {
	keys := c.Redis.Keys(ctx, c.Namespace+":*")
	pl := c.Redis.Pipeline()

	for _, key := range keys.Val() {
		pl.Del(ctx, key)
	}

	_, err := pl.Exec(ctx)
	return err
}
