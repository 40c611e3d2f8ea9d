package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var ErrNotConnected = errors.New("redis not connected")

var client *redis.Client

// SetClient 设置 Redis 客户端（由 internal/initial 调用）
func SetClient(c *redis.Client) {
	client = c
}

// Close 关闭 Redis 连接
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

func checkClient() error {
	if client == nil {
		return ErrNotConnected
	}
	return nil
}

// ==================== Pub/Sub ====================

// Publish 向频道发布消息，返回收到消息的订阅者数量
func Publish(ctx context.Context, channel string, message interface{}) (int64, error) {
	if err := checkClient(); err != nil {
		return 0, err
	}
	return client.Publish(ctx, channel, message).Result()
}

// Subscribe 订阅频道；返回前等待订阅确认，调用方负责 Close
func Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	if err := checkClient(); err != nil {
		return nil, err
	}
	ps := client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return ps, nil
}

// Ping 健康检查，中继启用时由 /healthz 调用
func Ping(ctx context.Context) error {
	if err := checkClient(); err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}
