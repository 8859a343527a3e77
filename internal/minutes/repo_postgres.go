package minutes

import (
	"context"
	"database/sql"
	"errors"

	"callkit/pkg/utils"
)

// PostgresRepository stores balances on the users row and movements in an
// append-only ledger.
//
// Assumed schema:
//
//	users (
//	  id TEXT PRIMARY KEY,
//	  available_call_minutes INT NOT NULL DEFAULT 0 CHECK (available_call_minutes >= 0),
//	  language TEXT NOT NULL DEFAULT '',
//	  updated_at TIMESTAMPTZ NOT NULL
//	)
//	minute_ledger (
//	  id TEXT PRIMARY KEY,
//	  user_id TEXT NOT NULL,
//	  type TEXT NOT NULL,
//	  minutes INT NOT NULL,
//	  call_id TEXT NOT NULL DEFAULT '',
//	  idempotency_key TEXT NOT NULL,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  UNIQUE (user_id, idempotency_key)
//	)
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetBalance(ctx context.Context, userID string) (Balance, error) {
	const q = `
SELECT id, available_call_minutes, updated_at
FROM users
WHERE id = $1
`
	var b Balance
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&b.UserID, &b.Minutes, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

func (r *PostgresRepository) ChargeMinute(ctx context.Context, userID string, entry LedgerEntry) (ChargeResult, error) {
	var out ChargeResult

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Compare-and-swap decrement: only applies while the balance is
		// positive, so this can never race the balance below zero.
		const dec = `
UPDATE users
SET available_call_minutes = available_call_minutes - 1,
    updated_at = $2
WHERE id = $1 AND available_call_minutes > 0
RETURNING available_call_minutes
`
		var remaining int
		err := tx.QueryRowContext(ctx, dec, userID, entry.CreatedAt).Scan(&remaining)
		if err == nil {
			if err := insertLedger(ctx, tx, entry); err != nil {
				return err
			}
			out = ChargeResult{Applied: true, Remaining: remaining}
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		// No row updated: either the user is missing or already exhausted.
		const bal = `SELECT available_call_minutes FROM users WHERE id = $1`
		var current int
		if err := tx.QueryRowContext(ctx, bal, userID).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		out = ChargeResult{Applied: false, Remaining: current}
		return nil
	})

	return out, err
}

func (r *PostgresRepository) Credit(ctx context.Context, userID string, entry LedgerEntry) (Balance, error) {
	var out Balance

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Idempotency: if this key was already posted, return the current
		// balance without crediting again.
		const find = `
SELECT 1 FROM minute_ledger WHERE user_id = $1 AND idempotency_key = $2 LIMIT 1
`
		var one int
		err := tx.QueryRowContext(ctx, find, userID, entry.IdempotencyKey).Scan(&one)
		if err == nil {
			return scanBalanceTx(ctx, tx, userID, &out)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		const credit = `
UPDATE users
SET available_call_minutes = available_call_minutes + $2,
    updated_at = $3
WHERE id = $1
RETURNING id, available_call_minutes, updated_at
`
		if err := tx.QueryRowContext(ctx, credit, userID, entry.Minutes, entry.CreatedAt).Scan(
			&out.UserID, &out.Minutes, &out.UpdatedAt,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return insertLedger(ctx, tx, entry)
	})

	return out, err
}

func (r *PostgresRepository) Language(ctx context.Context, userID string) (string, error) {
	const q = `SELECT language FROM users WHERE id = $1`
	var lang string
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&lang); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return lang, nil
}

func insertLedger(ctx context.Context, tx *sql.Tx, e LedgerEntry) error {
	const q = `
INSERT INTO minute_ledger (
  id, user_id, type, minutes, call_id, idempotency_key, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.UserID,
		e.Type,
		e.Minutes,
		e.CallID,
		e.IdempotencyKey,
		e.CreatedAt,
	)
	return err
}

func scanBalanceTx(ctx context.Context, tx *sql.Tx, userID string, out *Balance) error {
	const q = `SELECT id, available_call_minutes, updated_at FROM users WHERE id = $1`
	if err := tx.QueryRowContext(ctx, q, userID).Scan(&out.UserID, &out.Minutes, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
