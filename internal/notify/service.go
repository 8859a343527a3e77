package notify

import (
	"context"
	"errors"
	"log/slog"
)

var ErrInvalidArgument = errors.New("notify: invalid argument")

// Sender delivers a built notification to one user's devices.
type Sender interface {
	Send(ctx context.Context, receiverID string, n Notification) error
}

// LanguageResolver looks up a user's stored language preference.
type LanguageResolver interface {
	Language(ctx context.Context, userID string) (string, error)
}

// Service localizes and dispatches call push notifications.
// Dispatch is best-effort: a failed push must never fail the call flow, so
// callers log and continue on error.
type Service struct {
	sender Sender
	langs  LanguageResolver
	log    *slog.Logger
}

func NewService(sender Sender, langs LanguageResolver, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{sender: sender, langs: langs, log: log}
}

func (s *Service) Dispatch(ctx context.Context, receiverID string, p Payload, callerName string) error {
	if receiverID == "" || p.CallID == "" {
		return ErrInvalidArgument
	}

	lang := ""
	if s.langs != nil {
		l, err := s.langs.Language(ctx, receiverID)
		if err != nil {
			// Fall back to the default language rather than dropping the push.
			s.log.Warn("language lookup failed", "user_id", receiverID, "err", err)
		} else {
			lang = l
		}
	}

	title, body := Localize(lang, p, callerName)
	return s.sender.Send(ctx, receiverID, Notification{Payload: p, Title: title, Body: body})
}
