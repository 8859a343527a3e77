package calllog

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepository stores call history in the call_logs table.
//
// Assumed schema:
//
//	call_logs (
//	  id TEXT PRIMARY KEY,
//	  caller_id TEXT NOT NULL,
//	  caller_name TEXT NOT NULL DEFAULT '',
//	  receiver_id TEXT NOT NULL,
//	  receiver_name TEXT NOT NULL DEFAULT '',
//	  type TEXT NOT NULL,
//	  avatar_ref TEXT NOT NULL DEFAULT '',
//	  status TEXT NOT NULL,
//	  duration INT NOT NULL DEFAULT 0,
//	  created_at TIMESTAMPTZ NOT NULL
//	)
//
// Members is a derived field: membership queries match caller_id OR
// receiver_id, which is equivalent to the "members contains user" contract.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO call_logs (
  id, caller_id, caller_name, receiver_id, receiver_name, type, avatar_ref, status, duration, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.CallerID,
		e.CallerName,
		e.ReceiverID,
		e.ReceiverName,
		e.Type,
		e.AvatarRef,
		e.Status,
		e.DurationSeconds,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Entry, error) {
	const q = `
SELECT id, caller_id, caller_name, receiver_id, receiver_name, type, avatar_ref, status, duration, created_at
FROM call_logs
WHERE id = $1
`
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *PostgresRepository) Finalize(ctx context.Context, id string, status Status, durationSeconds int) (Entry, error) {
	// Guard in SQL: only an "outgoing" entry may be finalized, so a second
	// finalization can never overwrite the first.
	const q = `
UPDATE call_logs
SET status = $2, duration = $3
WHERE id = $1 AND status = $4
RETURNING id, caller_id, caller_name, receiver_id, receiver_name, type, avatar_ref, status, duration, created_at
`
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, id, status, durationSeconds, StatusOutgoing))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}

	// Distinguish missing from already-finalized.
	existing, gerr := r.Get(ctx, id)
	if gerr != nil {
		return Entry{}, gerr
	}
	return existing, ErrAlreadyFinalized
}

func (r *PostgresRepository) ListByMember(ctx context.Context, userID string, limit int) ([]Entry, error) {
	const q = `
SELECT id, caller_id, caller_name, receiver_id, receiver_name, type, avatar_ref, status, duration, created_at
FROM call_logs
WHERE caller_id = $1 OR receiver_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	if err := row.Scan(
		&e.ID,
		&e.CallerID,
		&e.CallerName,
		&e.ReceiverID,
		&e.ReceiverName,
		&e.Type,
		&e.AvatarRef,
		&e.Status,
		&e.DurationSeconds,
		&e.CreatedAt,
	); err != nil {
		return Entry{}, err
	}
	e.Members = []string{e.CallerID, e.ReceiverID}
	return e, nil
}
