package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blueberrycongee/llmroute/internal/config"
	"github.com/blueberrycongee/llmroute/routers"
)

// newSnapshotStore connects to Redis and returns the shared snapshot store.
// It returns nil when Redis is disabled.
func newSnapshotStore(ctx context.Context, cfg config.RedisConfig) (*routers.RedisSnapshotStore, redis.UniversalClient, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	var opts []routers.RedisSnapshotOption
	if cfg.KeyPrefix != "" {
		opts = append(opts, routers.WithKeyPrefix(cfg.KeyPrefix))
	}
	if cfg.LockTTL > 0 {
		opts = append(opts, routers.WithLockTTL(cfg.LockTTL))
	}
	return routers.NewRedisSnapshotStore(client, opts...), client, nil
}
