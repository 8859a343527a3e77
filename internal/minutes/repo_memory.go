package minutes

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu        sync.Mutex
	balances  map[string]int
	languages map[string]string
	ledger    []LedgerEntry
	keys      map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		balances:  make(map[string]int),
		languages: make(map[string]string),
		keys:      make(map[string]struct{}),
	}
}

// SetBalance seeds a user's balance (test helper).
func (r *MemoryRepository) SetBalance(userID string, minutes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] = minutes
}

// SetLanguage seeds a user's language preference (test helper).
func (r *MemoryRepository) SetLanguage(userID, lang string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.languages[userID] = lang
	if _, ok := r.balances[userID]; !ok {
		r.balances[userID] = 0
	}
}

// Ledger returns a copy of all posted entries (test helper).
func (r *MemoryRepository) Ledger() []LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LedgerEntry, len(r.ledger))
	copy(out, r.ledger)
	return out
}

func (r *MemoryRepository) GetBalance(_ context.Context, userID string) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bal, ok := r.balances[userID]
	if !ok {
		return Balance{}, ErrNotFound
	}
	return Balance{UserID: userID, Minutes: bal, UpdatedAt: time.Now().UTC()}, nil
}

func (r *MemoryRepository) ChargeMinute(_ context.Context, userID string, entry LedgerEntry) (ChargeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bal, ok := r.balances[userID]
	if !ok {
		return ChargeResult{}, ErrNotFound
	}
	if bal <= 0 {
		return ChargeResult{Applied: false, Remaining: bal}, nil
	}
	bal--
	r.balances[userID] = bal
	r.ledger = append(r.ledger, entry)
	return ChargeResult{Applied: true, Remaining: bal}, nil
}

func (r *MemoryRepository) Credit(_ context.Context, userID string, entry LedgerEntry) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bal, ok := r.balances[userID]
	if !ok {
		return Balance{}, ErrNotFound
	}
	key := userID + "/" + entry.IdempotencyKey
	if _, seen := r.keys[key]; seen {
		return Balance{UserID: userID, Minutes: bal, UpdatedAt: time.Now().UTC()}, nil
	}
	r.keys[key] = struct{}{}
	bal += entry.Minutes
	r.balances[userID] = bal
	r.ledger = append(r.ledger, entry)
	return Balance{UserID: userID, Minutes: bal, UpdatedAt: time.Now().UTC()}, nil
}

func (r *MemoryRepository) Language(_ context.Context, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.balances[userID]; !ok {
		return "", ErrNotFound
	}
	return r.languages[userID], nil
}
