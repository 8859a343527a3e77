package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func pushChannel(userID string) string { return "push:user:" + userID }

// RedisSender publishes notifications on the user's push relay channel.
// The mobile push relay (and the in-process websocket gateway) consume it.
type RedisSender struct {
	rdb *redis.Client
}

func NewRedisSender(rdb *redis.Client) *RedisSender {
	return &RedisSender{rdb: rdb}
}

func (s *RedisSender) Send(ctx context.Context, receiverID string, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal notification: %w", err)
	}
	return s.rdb.Publish(ctx, pushChannel(receiverID), payload).Err()
}

// PushChannel exposes the relay channel name for subscribers (the gateway).
func PushChannel(userID string) string { return pushChannel(userID) }
