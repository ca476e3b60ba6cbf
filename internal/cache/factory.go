package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dumb-meh/Sui-Amor/config"
)

// New builds the configured SessionCache backend.
func New(ctx context.Context, cfg config.CacheConfig) (SessionCache, error) {
	switch cfg.Backend {
	case "redis":
		client, err := Conn(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, cfg.Prefix), nil
	case "memory":
		return NewMemory(15 * time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
