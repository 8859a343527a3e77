package signaling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Bus is the realtime fan-out contract for call events.
//
// Delivery semantics follow the store subscription model: incoming-call
// subscribers see only newly created ringing intents for their user id;
// status subscribers see every change to one intent, in write order.
type Bus interface {
	PublishIncoming(ctx context.Context, intent Intent) error
	PublishStatus(ctx context.Context, ev StatusEvent) error
	// SubscribeIncoming invokes cb for each new incoming call until the
	// returned stop func is called.
	SubscribeIncoming(ctx context.Context, userID string, cb func(Intent)) (func(), error)
	// SubscribeStatus invokes cb for each status event of one call until
	// the returned stop func is called.
	SubscribeStatus(ctx context.Context, callID string, cb func(StatusEvent)) (func(), error)
}

func incomingChannel(userID string) string { return "call:incoming:" + userID }
func statusChannel(callID string) string   { return "call:status:" + callID }

// RedisBus fans call events out over Redis pub/sub.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) PublishIncoming(ctx context.Context, intent Intent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("signaling: marshal incoming event: %w", err)
	}
	return b.rdb.Publish(ctx, incomingChannel(intent.ReceiverID), payload).Err()
}

func (b *RedisBus) PublishStatus(ctx context.Context, ev StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("signaling: marshal status event: %w", err)
	}
	return b.rdb.Publish(ctx, statusChannel(ev.CallID), payload).Err()
}

func (b *RedisBus) SubscribeIncoming(ctx context.Context, userID string, cb func(Intent)) (func(), error) {
	sub := b.rdb.Subscribe(ctx, incomingChannel(userID))
	// Force the subscription to be established before returning so callers
	// cannot miss an event published right after subscribing.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			var intent Intent
			if err := json.Unmarshal([]byte(msg.Payload), &intent); err != nil {
				continue
			}
			if intent.Status != StatusRinging {
				continue
			}
			cb(intent)
		}
	}()

	return func() { _ = sub.Close() }, nil
}

func (b *RedisBus) SubscribeStatus(ctx context.Context, callID string, cb func(StatusEvent)) (func(), error) {
	sub := b.rdb.Subscribe(ctx, statusChannel(callID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			var ev StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			cb(ev)
		}
	}()

	return func() { _ = sub.Close() }, nil
}
