package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/acquiring/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "acquiring:ratelimit:"

var Module = fx.Module("rate.limit",
	fx.Provide(provideAPILimiter),
)

// provideAPILimiter returns nil when API_RATE_LIMIT is zero or Redis is absent.
func provideAPILimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *APILimiter {
	if cfg.APIRateLimit <= 0 {
		return nil
	}
	if client == nil {
		log.Warn("API_RATE_LIMIT set but redis not configured, rate limiting disabled")
		return nil
	}
	return NewAPILimiter(NewTokenBucket(client, keyPrefix), cfg.APIRateLimit, cfg.APIRateBurst)
}
