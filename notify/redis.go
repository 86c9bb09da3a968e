package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher is the part of a redis client used to publish alerts.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSender publishes rendered alerts as JSON on a Redis channel.
type RedisSender struct {
	Client  Publisher
	Channel string
}

// NewRedisClient connects to the redis server at addr and checks it answers.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (s *RedisSender) Send(ctx context.Context, a Alert) error {
	m, err := Render(a)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := s.Client.Publish(ctx, s.Channel, payload).Err(); err != nil {
		return fmt.Errorf("error publishing alert %q: %w", a.Template, err)
	}
	return nil
}
