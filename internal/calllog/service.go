package calllog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("calllog: not found")
	ErrInvalidArgument  = errors.New("calllog: invalid argument")
	ErrAlreadyFinalized = errors.New("calllog: already finalized")
)

// Repository is the persistence contract for call history.
//
// Finalize MUST be atomic: it may only move an entry from "outgoing" to a
// terminal status, and a second finalization must not overwrite the first.
type Repository interface {
	Create(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	// Finalize sets the terminal status and duration. Returns
	// ErrAlreadyFinalized if the entry is no longer "outgoing".
	Finalize(ctx context.Context, id string, status Status, durationSeconds int) (Entry, error)
	// ListByMember returns entries containing userID, newest first.
	ListByMember(ctx context.Context, userID string, limit int) ([]Entry, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

type CreateRequest struct {
	CallerID     string
	CallerName   string
	ReceiverID   string
	ReceiverName string
	Type         CallType
	AvatarRef    string
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Entry, error) {
	if req.CallerID == "" || req.ReceiverID == "" {
		return Entry{}, ErrInvalidArgument
	}
	if req.Type != CallTypeAudio && req.Type != CallTypeVideo {
		return Entry{}, ErrInvalidArgument
	}

	e := Entry{
		ID:           uuid.NewString(),
		CallerID:     req.CallerID,
		CallerName:   req.CallerName,
		ReceiverID:   req.ReceiverID,
		ReceiverName: req.ReceiverName,
		Type:         req.Type,
		AvatarRef:    req.AvatarRef,
		Status:       StatusOutgoing,
		Members:      []string{req.CallerID, req.ReceiverID},
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Finalize closes an entry exactly once. A repeat finalization is reported
// as ErrAlreadyFinalized; the stored entry is never overwritten.
func (s *Service) Finalize(ctx context.Context, id string, status Status, durationSeconds int) error {
	if id == "" {
		return ErrInvalidArgument
	}
	if !status.IsTerminal() {
		return ErrInvalidArgument
	}
	if durationSeconds < 0 {
		return ErrInvalidArgument
	}
	_, err := s.repo.Finalize(ctx, id, status, durationSeconds)
	return err
}

func (s *Service) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByMember(ctx, userID, limit)
}

// Summary aggregates a user's history by terminal status.
type Summary struct {
	TotalCalls           int `json:"total_calls"`
	EndedCalls           int `json:"ended_calls"`
	RejectedCalls        int `json:"rejected_calls"`
	MissedCalls          int `json:"missed_calls"`
	OutgoingCalls        int `json:"outgoing_calls"`
	TotalDurationSeconds int `json:"total_duration_seconds"`
}

func (s *Service) Summarize(ctx context.Context, userID string) (Summary, error) {
	rows, err := s.List(ctx, userID, 200)
	if err != nil {
		return Summary{}, err
	}

	var out Summary
	for _, e := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += e.DurationSeconds
		switch e.Status {
		case StatusEnded:
			out.EndedCalls++
		case StatusRejected:
			out.RejectedCalls++
		case StatusMissed:
			out.MissedCalls++
		case StatusOutgoing:
			out.OutgoingCalls++
		}
	}
	return out, nil
}
