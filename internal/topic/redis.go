package topic

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	logx "remindbot/pkg/logx"
)

// redisPublisher fans messages out with PUBLISH on one channel.
type redisPublisher struct {
	client  *redis.Client
	channel string
	log     logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (*redisPublisher, error) {
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: dial,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dial)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("topic: connect redis %s: %w", cfg.RedisAddr, err)
	}
	log.Info("redis publisher ready", logx.String("addr", cfg.RedisAddr), logx.String("channel", cfg.RedisChannel))
	return &redisPublisher{client: client, channel: cfg.RedisChannel, log: log}, nil
}

func (p *redisPublisher) Publish(ctx context.Context, message string) error {
	n, err := p.client.Publish(ctx, p.channel, message).Result()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	p.log.Debug("redis message published", logx.String("channel", p.channel), logx.Int64("receivers", n))
	return nil
}

func (p *redisPublisher) Close() error {
	if err := p.client.Close(); err != nil && err != redis.ErrClosed {
		return err
	}
	return nil
}
