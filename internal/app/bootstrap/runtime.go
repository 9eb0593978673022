package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/patient-portal/internal/config"
	"github.com/wolfman30/patient-portal/internal/conversation"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildSessionStore keeps chat sessions in Redis when available. The
// in-memory store only suits a single process.
func BuildSessionStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) conversation.SessionStore {
	if redisClient == nil {
		if logger != nil {
			logger.Warn("redis not configured; chat sessions kept in memory")
		}
		return conversation.NewMemorySessionStore()
	}
	return conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL)
}
