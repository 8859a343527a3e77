package signaling

import "time"

// Intent is the signaling record representing one call attempt.
//
// Lifecycle: created by the caller (ringing), mutated by the receiver
// (accept/reject) or either side (end), deleted a few seconds after
// reaching a terminal status.
//
// Status invariant: monotonic, ringing -> {accepted|rejected|missed} -> ended,
// never reverses. The repository enforces legal transitions so a late writer
// cannot resurrect a resolved call.
type Intent struct {
	CallID      string `json:"call_id" db:"call_id"`
	CallerID    string `json:"caller_id" db:"caller_id"`
	ReceiverID  string `json:"receiver_id" db:"receiver_id"`
	ChannelName string `json:"channel_name" db:"channel_name"`
	IsAudioOnly bool   `json:"is_audio_only" db:"is_audio_only"`

	Status Status `json:"status" db:"status"`

	// Caller is a snapshot taken at initiate time so the receiver can render
	// the incoming-call screen without an extra profile read.
	Caller CallerSnapshot `json:"caller"`

	// CallLogID references the history entry created alongside this intent.
	CallLogID string `json:"call_log_id" db:"call_log_id"`

	// Camera flags are mirrored here so the remote side can suppress a
	// frozen frame while the local camera is off.
	CallerCameraEnabled   bool `json:"caller_camera_enabled" db:"caller_camera_enabled"`
	ReceiverCameraEnabled bool `json:"receiver_camera_enabled" db:"receiver_camera_enabled"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CallerSnapshot struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

type Status string

const (
	StatusRinging  Status = "ringing"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusMissed   Status = "missed"
	StatusEnded    Status = "ended"
)

// IsTerminal reports whether no further transition may leave s,
// other than the move to "ended".
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusMissed, StatusEnded:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal status move.
// ringing may resolve to accepted, rejected or missed; ringing and accepted
// may end. Nothing ever returns to ringing.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusAccepted, StatusRejected, StatusMissed:
		return from == StatusRinging
	case StatusEnded:
		return from == StatusRinging || from == StatusAccepted
	default:
		return false
	}
}

// transitionSources lists the statuses a move to `to` may start from.
func transitionSources(to Status) []Status {
	switch to {
	case StatusAccepted, StatusRejected, StatusMissed:
		return []Status{StatusRinging}
	case StatusEnded:
		return []Status{StatusRinging, StatusAccepted}
	default:
		return nil
	}
}

// Party identifies a side of the call for camera-flag updates.
type Party string

const (
	PartyCaller   Party = "caller"
	PartyReceiver Party = "receiver"
)

// EndReason is the terminal status requested through EndCall.
type EndReason string

const (
	EndReasonEnded  EndReason = "ended"
	EndReasonMissed EndReason = "missed"
)

// StatusEvent is delivered to per-call status listeners on every change.
// Deleted marks the synthetic event published when the intent document is
// removed; its Status is always "ended".
type StatusEvent struct {
	CallID  string `json:"call_id"`
	Status  Status `json:"status"`
	Deleted bool   `json:"deleted,omitempty"`
	Intent  Intent `json:"intent,omitempty"`
}
