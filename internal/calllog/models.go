package calllog

import "time"

// Entry is one row of a user's call history.
//
// An entry is created when a call is initiated (status "outgoing") and
// finalized exactly once with a terminal status and the connected duration.
// Members always holds [callerID, receiverID] so one contains-query serves
// both sides of the call.
type Entry struct {
	ID           string    `json:"id" db:"id"`
	CallerID     string    `json:"caller_id" db:"caller_id"`
	CallerName   string    `json:"caller_name" db:"caller_name"`
	ReceiverID   string    `json:"receiver_id" db:"receiver_id"`
	ReceiverName string    `json:"receiver_name" db:"receiver_name"`
	Type         CallType  `json:"type" db:"type"`
	AvatarRef    string    `json:"avatar_ref,omitempty" db:"avatar_ref"`
	Status       Status    `json:"status" db:"status"`
	// DurationSeconds is the connected duration; zero until finalized.
	DurationSeconds int       `json:"duration" db:"duration"`
	Members         []string  `json:"members" db:"members"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

type Status string

const (
	StatusOutgoing Status = "outgoing"
	StatusEnded    Status = "ended"
	StatusRejected Status = "rejected"
	StatusMissed   Status = "missed"
)

// IsTerminal reports whether a status closes the entry.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusEnded, StatusRejected, StatusMissed:
		return true
	default:
		return false
	}
}
