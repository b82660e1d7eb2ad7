package lock

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/acquiring/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "acquiring:lock:"

var Module = fx.Module("lock",
	fx.Provide(NewRedisClient),
	fx.Provide(func(client *redis.Client) *Locker {
		if client == nil {
			return nil
		}
		return NewLocker(client, keyPrefix)
	}),
)

// NewRedisClient returns nil when REDIS_ADDR is unset; locking and failure
// notifications are then disabled.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Info("redis not configured, payment locks disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}
