package gateway

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"callkit/internal/notify"
)

// RedisPushSource subscribes to the user's push relay channel, the same
// channel notify.RedisSender publishes on.
type RedisPushSource struct {
	rdb *redis.Client
}

func NewRedisPushSource(rdb *redis.Client) *RedisPushSource {
	return &RedisPushSource{rdb: rdb}
}

func (s *RedisPushSource) SubscribePush(ctx context.Context, userID string, cb func(notify.Notification)) (func(), error) {
	sub := s.rdb.Subscribe(ctx, notify.PushChannel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			var n notify.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				continue
			}
			cb(n)
		}
	}()

	return func() { _ = sub.Close() }, nil
}
