package data

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"flashmall-backend/internal/config"
)

// NewRedis 构建 Redis 客户端
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping 启动时探活，避免带着坏连接进入服务
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
