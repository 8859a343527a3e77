package signaling

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepository stores call intents in the call_intents table.
//
// Assumed schema:
//
//	call_intents (
//	  call_id TEXT PRIMARY KEY,
//	  caller_id TEXT NOT NULL,
//	  receiver_id TEXT NOT NULL,
//	  channel_name TEXT NOT NULL,
//	  is_audio_only BOOLEAN NOT NULL,
//	  status TEXT NOT NULL,
//	  caller_snapshot_id TEXT NOT NULL,
//	  caller_snapshot_name TEXT NOT NULL DEFAULT '',
//	  caller_snapshot_avatar TEXT NOT NULL DEFAULT '',
//	  call_log_id TEXT NOT NULL,
//	  caller_camera_enabled BOOLEAN NOT NULL,
//	  receiver_camera_enabled BOOLEAN NOT NULL,
//	  created_at TIMESTAMPTZ NOT NULL
//	)
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const intentColumns = `
call_id, caller_id, receiver_id, channel_name, is_audio_only, status,
caller_snapshot_id, caller_snapshot_name, caller_snapshot_avatar,
call_log_id, caller_camera_enabled, receiver_camera_enabled, created_at
`

func (r *PostgresRepository) Create(ctx context.Context, in Intent) error {
	const q = `
INSERT INTO call_intents (` + intentColumns + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
`
	_, err := r.db.ExecContext(ctx, q,
		in.CallID,
		in.CallerID,
		in.ReceiverID,
		in.ChannelName,
		in.IsAudioOnly,
		in.Status,
		in.Caller.ID,
		in.Caller.DisplayName,
		in.Caller.AvatarRef,
		in.CallLogID,
		in.CallerCameraEnabled,
		in.ReceiverCameraEnabled,
		in.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, callID string) (Intent, error) {
	const q = `SELECT ` + intentColumns + ` FROM call_intents WHERE call_id = $1`
	in, err := scanIntent(r.db.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Intent{}, ErrNotFound
		}
		return Intent{}, err
	}
	return in, nil
}

// Transition moves the intent to the target status if the stored status
// permits it. The status guard lives in the WHERE clause so a racing writer
// can never regress a resolved call.
func (r *PostgresRepository) Transition(ctx context.Context, callID string, to Status) (Intent, bool, error) {
	sources := transitionSources(to)
	if len(sources) == 0 {
		return Intent{}, false, ErrInvalidArgument
	}

	var (
		row *sql.Row
	)
	switch len(sources) {
	case 1:
		const q = `
UPDATE call_intents SET status = $2
WHERE call_id = $1 AND status = $3
RETURNING ` + intentColumns
		row = r.db.QueryRowContext(ctx, q, callID, to, sources[0])
	default:
		const q = `
UPDATE call_intents SET status = $2
WHERE call_id = $1 AND status IN ($3, $4)
RETURNING ` + intentColumns
		row = r.db.QueryRowContext(ctx, q, callID, to, sources[0], sources[1])
	}

	in, err := scanIntent(row)
	if err == nil {
		return in, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Intent{}, false, err
	}

	// No row updated: missing document, or the status no longer permits the
	// transition (stale writer). Distinguish the two for the caller.
	existing, gerr := r.Get(ctx, callID)
	if gerr != nil {
		return Intent{}, false, gerr
	}
	return existing, false, nil
}

func (r *PostgresRepository) SetCameraEnabled(ctx context.Context, callID string, party Party, enabled bool) (Intent, error) {
	var q string
	switch party {
	case PartyCaller:
		q = `UPDATE call_intents SET caller_camera_enabled = $2 WHERE call_id = $1 RETURNING ` + intentColumns
	case PartyReceiver:
		q = `UPDATE call_intents SET receiver_camera_enabled = $2 WHERE call_id = $1 RETURNING ` + intentColumns
	default:
		return Intent{}, ErrInvalidArgument
	}

	in, err := scanIntent(r.db.QueryRowContext(ctx, q, callID, enabled))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Intent{}, ErrNotFound
		}
		return Intent{}, err
	}
	return in, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, callID string) error {
	const q = `DELETE FROM call_intents WHERE call_id = $1`
	_, err := r.db.ExecContext(ctx, q, callID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (Intent, error) {
	var in Intent
	if err := row.Scan(
		&in.CallID,
		&in.CallerID,
		&in.ReceiverID,
		&in.ChannelName,
		&in.IsAudioOnly,
		&in.Status,
		&in.Caller.ID,
		&in.Caller.DisplayName,
		&in.Caller.AvatarRef,
		&in.CallLogID,
		&in.CallerCameraEnabled,
		&in.ReceiverCameraEnabled,
		&in.CreatedAt,
	); err != nil {
		return Intent{}, err
	}
	return in, nil
}
