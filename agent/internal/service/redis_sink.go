package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/han-fei/perfagent/agent/internal/config"
	"github.com/han-fei/perfagent/agent/internal/models"
)

// RedisSink Redis写入端。
// 每个存储路径对应一个列表，事件负载按入队顺序追加，列表带过期时间。
type RedisSink struct {
	client    redis.UniversalClient
	keyPrefix string
	keyTTL    time.Duration
}

// NewRedisSink 创建Redis写入端并测试连接
func NewRedisSink(cfg *config.RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisSinkWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisSinkWithClient 使用已有客户端创建写入端
func NewRedisSinkWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, keyPrefix: keyPrefix, keyTTL: ttl}
}

// Name 实现 Sink
func (s *RedisSink) Name() string {
	return "redis"
}

// formatKey 格式化键
func (s *RedisSink) formatKey(path string) string {
	return s.keyPrefix + path
}

// Write 实现 Sink，一个批次一次管道提交
func (s *RedisSink) Write(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	touched := make(map[string]struct{})
	for _, e := range events {
		key := s.formatKey(e.Key)
		pipe.RPush(ctx, key, e.Value)
		touched[key] = struct{}{}
	}
	if s.keyTTL > 0 {
		for key := range touched {
			pipe.Expire(ctx, key, s.keyTTL)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Close 关闭连接
func (s *RedisSink) Close() error {
	return s.client.Close()
}
