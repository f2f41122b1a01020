package redis_client

import (
	"context"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/leeforge/imagevise/logging"
)

const pingTimeout = 5 * time.Second

func NewRedis(cnf Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cnf.Addr(),
		Password: cnf.Password,
		DB:       cnf.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cnf.Addr(), err)
	}
	logging.Named("redis").Info("redis.connected", zap.String("pong", pong), zap.String("config", redisConfigLogFields(cnf)))
	return client, nil
}

func redisConfigLogFields(cnf Config) string {
	return fmt.Sprintf("addr=%s db=%d password=%s", cnf.Addr(), cnf.DB, redactedPassword(cnf.Password))
}

func redactedPassword(password string) string {
	if password == "" {
		return "<empty>"
	}
	return "[REDACTED]"
}
