package signaling

import (
	"context"
	"sync"
	"time"

	"callkit/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// SlotGuard enforces the at-most-one-live-call invariant per user: a caller
// may not initiate a second call while one is in flight. The slot is claimed
// at initiate time and released when the intent reaches a terminal status.
type SlotGuard interface {
	Claim(ctx context.Context, userID, callID string) (bool, error)
	Release(ctx context.Context, userID, callID string) error
}

func activeCallKey(userID string) string { return "call:active:" + userID }

// RedisSlotGuard backs the slot with an atomic Redis claim so the invariant
// holds across API instances.
type RedisSlotGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSlotGuard(rdb *redis.Client, ttl time.Duration) *RedisSlotGuard {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &RedisSlotGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisSlotGuard) Claim(ctx context.Context, userID, callID string) (bool, error) {
	return utils.ClaimActiveCallSlot(ctx, g.rdb, activeCallKey(userID), callID, g.ttl)
}

func (g *RedisSlotGuard) Release(ctx context.Context, userID, callID string) error {
	return utils.ReleaseActiveCallSlot(ctx, g.rdb, activeCallKey(userID), callID)
}

// MemorySlotGuard is an in-process SlotGuard for tests and local runs.
type MemorySlotGuard struct {
	mu    sync.Mutex
	slots map[string]string
}

func NewMemorySlotGuard() *MemorySlotGuard {
	return &MemorySlotGuard{slots: make(map[string]string)}
}

func (g *MemorySlotGuard) Claim(_ context.Context, userID, callID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	current, ok := g.slots[userID]
	if ok && current != callID {
		return false, nil
	}
	g.slots[userID] = callID
	return true, nil
}

func (g *MemorySlotGuard) Release(_ context.Context, userID, callID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slots[userID] == callID {
		delete(g.slots, userID)
	}
	return nil
}
