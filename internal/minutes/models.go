package minutes

import "time"

// Balance is a user's remaining call minutes.
// Invariant: Minutes is never negative. The only writers are the billing
// meter (ChargeMinute, compare-and-swap) and the top-up flow (Credit); both
// go through this package so the invariant is enforced in one place.
type Balance struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Minutes   int       `json:"minutes" db:"minutes"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is an immutable append-only record of a minute movement.
// Any balance change MUST have a corresponding ledger entry.
type LedgerEntry struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Type EntryType `json:"type" db:"type"`

	// Minutes is signed: credits are positive, charges are negative.
	Minutes int `json:"minutes" db:"minutes"`

	// CallID references the call that caused a charge; empty for top-ups.
	CallID string `json:"call_id,omitempty" db:"call_id"`

	// IdempotencyKey is required for top-ups so purchase retries are safe.
	// Charges carry a derived key (call id + charge ordinal).
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryTypeCredit EntryType = "credit" // top-up or manual adjustment
	EntryTypeCharge EntryType = "charge" // per-minute billing decrement
)

// ChargeResult reports the outcome of one billing decrement.
type ChargeResult struct {
	// Applied is false when the balance was already exhausted at read time;
	// no decrement happened in that case.
	Applied bool `json:"applied"`
	// Remaining is the balance after the operation.
	Remaining int `json:"remaining"`
}
