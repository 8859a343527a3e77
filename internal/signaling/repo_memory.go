package signaling

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu      sync.Mutex
	intents map[string]Intent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{intents: make(map[string]Intent)}
}

func (r *MemoryRepository) Create(_ context.Context, in Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents[in.CallID] = in
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, callID string) (Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[callID]
	if !ok {
		return Intent{}, ErrNotFound
	}
	return in, nil
}

func (r *MemoryRepository) Transition(_ context.Context, callID string, to Status) (Intent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[callID]
	if !ok {
		return Intent{}, false, ErrNotFound
	}
	if !CanTransition(in.Status, to) {
		return in, false, nil
	}
	in.Status = to
	r.intents[callID] = in
	return in, true, nil
}

func (r *MemoryRepository) SetCameraEnabled(_ context.Context, callID string, party Party, enabled bool) (Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[callID]
	if !ok {
		return Intent{}, ErrNotFound
	}
	switch party {
	case PartyCaller:
		in.CallerCameraEnabled = enabled
	case PartyReceiver:
		in.ReceiverCameraEnabled = enabled
	default:
		return Intent{}, ErrInvalidArgument
	}
	r.intents[callID] = in
	return in, nil
}

func (r *MemoryRepository) Delete(_ context.Context, callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.intents, callID)
	return nil
}
