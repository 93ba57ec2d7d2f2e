package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-desk/internal/config"
)

// Redis holds the client used for distributed ticket locks and readiness checks.
type Redis struct {
	Client redis.UniversalClient
}

// NewRedis builds a client for cfg. One address yields a plain client, several a
// cluster client, and a master name a sentinel failover client. No address leaves
// redis disabled. An unreachable server is logged, not fatal.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if len(cfg.Addrs) == 0 {
		logger.Info("REDIS_ADDR not provided; redis disabled")
		return &Redis{}
	}

	client := redis.NewUniversalClient(universalOptions(cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Strings("addrs", cfg.Addrs), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.Strings("addrs", cfg.Addrs), zap.String("master", cfg.MasterName))
	}
	return &Redis{Client: client}
}

func universalOptions(cfg config.RedisConfig) *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:      cfg.Addrs,
		MasterName: cfg.MasterName,
		Password:   cfg.Password,
		DB:         cfg.DB,
	}
}

// Enabled reports whether a client was configured.
func (r *Redis) Enabled() bool {
	return r != nil && r.Client != nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r.Enabled() {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
