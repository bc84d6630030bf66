package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher is the subset of *redis.Client the announcement sink uses.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Announcement is the payload published for a released item: the code to
// call out and the phone to notify.
type Announcement struct {
	Code  string `json:"code"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// RedisSink publishes check-out announcements to a Redis channel, where the
// voice and SMS collaborators subscribe.
type RedisSink struct {
	client  RedisPublisher
	channel string
}

// NewRedisSink returns a sink publishing to channel.
func NewRedisSink(client RedisPublisher, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// NewRedisClient builds a go-redis client from connection settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisSink) Name() string { return "redis" }

// Send publishes checked_out events and ignores everything else.
func (s *RedisSink) Send(ctx context.Context, ev Event) error {
	if ev.Kind != KindCheckedOut {
		return nil
	}
	payload, err := json.Marshal(Announcement{Code: ev.Code, Phone: ev.ClientPhone, Name: ev.ClientName})
	if err != nil {
		return fmt.Errorf("encoding announcement: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing announcement: %w", err)
	}
	return nil
}
