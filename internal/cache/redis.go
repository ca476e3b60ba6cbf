package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dumb-meh/Sui-Amor/config"
	"github.com/dumb-meh/Sui-Amor/models"
)

// Redis is the remote SessionCache backend. All failures are reported as
// models.ErrCacheUnavailable so the orchestrator can log them and treat the
// lookup as a miss.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// Conn dials Redis and verifies the connection with a ping.
func Conn(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (c *Redis) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *Redis) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: get: %v", models.ErrCacheUnavailable, err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("%w: decode: %v", models.ErrCacheUnavailable, err)
	}
	// Redis enforces its own TTL, but the stored timestamp is authoritative
	// for the inclusive-expiry boundary.
	if entry.Expired(c.now()) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *Redis) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
			return fmt.Errorf("%w: del: %v", models.ErrCacheUnavailable, err)
		}
		return nil
	}
	entry := Entry{Key: key, Payload: payload, CreatedAt: c.now(), TTL: ttl}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", models.ErrCacheUnavailable, err)
	}
	if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", models.ErrCacheUnavailable, err)
	}
	return nil
}

func (c *Redis) Close() error { return c.client.Close() }
