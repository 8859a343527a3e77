package minutes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("minutes: user not found")
	ErrInvalidArgument = errors.New("minutes: invalid argument")
)

// Repository is the persistence contract for minute balances.
//
// ChargeMinute must have compare-and-swap semantics: the decrement applies
// only while the stored balance is positive, so concurrent writers can never
// drive it negative.
type Repository interface {
	GetBalance(ctx context.Context, userID string) (Balance, error)
	// ChargeMinute atomically decrements one minute if the balance is
	// positive and appends the ledger entry in the same transaction.
	ChargeMinute(ctx context.Context, userID string, entry LedgerEntry) (ChargeResult, error)
	// Credit adds minutes and appends the ledger entry transactionally.
	// A repeated idempotency key returns the original result.
	Credit(ctx context.Context, userID string, entry LedgerEntry) (Balance, error)
	Language(ctx context.Context, userID string) (string, error)
}

// Service provides minute-balance operations.
//
// Money-adjacent invariants, same posture as a wallet:
// - No balance updates without a ledger entry.
// - Ledger is append-only (immutable).
// - Charges use compare-and-swap; the balance never goes negative.
type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Balance(ctx context.Context, userID string) (Balance, error) {
	if userID == "" {
		return Balance{}, ErrInvalidArgument
	}
	return s.repo.GetBalance(ctx, userID)
}

// ChargeMinute posts one billing decrement for a connected call.
// When the balance is already exhausted the charge does not apply and
// Applied is false; callers must treat that as the exhaustion signal.
func (s *Service) ChargeMinute(ctx context.Context, userID, callID string) (ChargeResult, error) {
	if userID == "" || callID == "" {
		return ChargeResult{}, ErrInvalidArgument
	}

	entry := LedgerEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           EntryTypeCharge,
		Minutes:        -1,
		CallID:         callID,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      s.clock().UTC(),
	}
	return s.repo.ChargeMinute(ctx, userID, entry)
}

type TopUpRequest struct {
	Minutes        int    `json:"minutes"`
	IdempotencyKey string `json:"idempotency_key"`
}

// TopUp credits purchased minutes. Safe to retry with the same key.
func (s *Service) TopUp(ctx context.Context, userID string, req TopUpRequest) (Balance, error) {
	if userID == "" {
		return Balance{}, ErrInvalidArgument
	}
	if req.Minutes <= 0 {
		return Balance{}, ErrInvalidArgument
	}
	if req.IdempotencyKey == "" {
		return Balance{}, ErrInvalidArgument
	}

	entry := LedgerEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		Type:           EntryTypeCredit,
		Minutes:        req.Minutes,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.clock().UTC(),
	}
	return s.repo.Credit(ctx, userID, entry)
}

// Language returns the user's stored language preference ("" if unset).
// Lives here because the preference sits on the same user record as the
// balance; notification localization reads it through this service.
func (s *Service) Language(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrInvalidArgument
	}
	return s.repo.Language(ctx, userID)
}
