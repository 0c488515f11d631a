package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"calcReco/pkg/config"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPoolSize    = 10
	defaultDialTimeout = 5 * time.Second
	pingTimeout        = 3 * time.Second
)

// Options maps the service's Redis settings onto go-redis options.
// Zero pool size and dial timeout fall back to package defaults.
func Options(cfg config.RedisConfig) *redis.Options {
	pool := cfg.PoolSize
	if pool <= 0 {
		pool = defaultPoolSize
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}

	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  dial,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     pool,
		MinIdleConns: max(pool/5, 1),
	}
}

// NewRedisClient connects to the recommendation cache backend and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", client.Options().Addr, err)
	}

	return client, nil
}

func CloseRedisClient(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
