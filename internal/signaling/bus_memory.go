package signaling

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for tests and local runs.
type MemoryBus struct {
	mu       sync.Mutex
	nextID   int
	incoming map[string]map[int]func(Intent)
	status   map[string]map[int]func(StatusEvent)
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		incoming: make(map[string]map[int]func(Intent)),
		status:   make(map[string]map[int]func(StatusEvent)),
	}
}

func (b *MemoryBus) PublishIncoming(_ context.Context, intent Intent) error {
	b.mu.Lock()
	subs := make([]func(Intent), 0, len(b.incoming[intent.ReceiverID]))
	for _, cb := range b.incoming[intent.ReceiverID] {
		subs = append(subs, cb)
	}
	b.mu.Unlock()

	for _, cb := range subs {
		cb(intent)
	}
	return nil
}

func (b *MemoryBus) PublishStatus(_ context.Context, ev StatusEvent) error {
	b.mu.Lock()
	subs := make([]func(StatusEvent), 0, len(b.status[ev.CallID]))
	for _, cb := range b.status[ev.CallID] {
		subs = append(subs, cb)
	}
	b.mu.Unlock()

	for _, cb := range subs {
		cb(ev)
	}
	return nil
}

func (b *MemoryBus) SubscribeIncoming(_ context.Context, userID string, cb func(Intent)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.incoming[userID] == nil {
		b.incoming[userID] = make(map[int]func(Intent))
	}
	b.incoming[userID][id] = func(i Intent) {
		if i.Status == StatusRinging {
			cb(i)
		}
	}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.incoming[userID], id)
	}, nil
}

func (b *MemoryBus) SubscribeStatus(_ context.Context, callID string, cb func(StatusEvent)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.status[callID] == nil {
		b.status[callID] = make(map[int]func(StatusEvent))
	}
	b.status[callID][id] = cb
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.status[callID], id)
	}, nil
}
