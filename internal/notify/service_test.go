package notify

import (
	"context"
	"errors"
	"testing"

	"callkit/internal/minutes"
)

func TestLocalize_FallsBackToEnglish(t *testing.T) {
	title, body := Localize("fr", Payload{Type: TypeCall, IsAudioOnly: true}, "Alice")
	if title != "Incoming voice call" || body != "Alice is calling you" {
		t.Fatalf("unexpected fallback: %q / %q", title, body)
	}
}

func TestLocalize_UsesCatalogAndCallType(t *testing.T) {
	title, _ := Localize("es", Payload{Type: TypeCall}, "Alice")
	if title != "Videollamada entrante" {
		t.Fatalf("unexpected title: %q", title)
	}

	title, body := Localize("pt", Payload{Type: TypeMissedCall}, "Alice")
	if title != "Chamada perdida" || body != "Você perdeu uma chamada de Alice" {
		t.Fatalf("unexpected missed-call text: %q / %q", title, body)
	}
}

func TestLocalize_AnonymousCaller(t *testing.T) {
	_, body := Localize("en", Payload{Type: TypeCall}, "")
	if body != "Someone is calling you" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestDispatch_LocalizesByStoredPreference(t *testing.T) {
	users := minutes.NewMemoryRepository()
	users.SetLanguage("receiver", "es")
	sender := NewMemorySender()
	svc := NewService(sender, minutes.NewService(users), nil)

	err := svc.Dispatch(context.Background(), "receiver", Payload{
		Type:        TypeCall,
		CallID:      "c1",
		CallerID:    "caller",
		ChannelName: "ch1",
	}, "Alice")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sent))
	}
	if sent[0].ReceiverID != "receiver" {
		t.Fatalf("wrong receiver: %q", sent[0].ReceiverID)
	}
	if sent[0].Notification.Title != "Videollamada entrante" {
		t.Fatalf("expected localized title, got %q", sent[0].Notification.Title)
	}
	if sent[0].Notification.Payload.CallID != "c1" {
		t.Fatalf("payload must pass through untouched")
	}
}

func TestDispatch_LanguageLookupFailureStillSends(t *testing.T) {
	// No such user: the lookup fails but the push must go out in English.
	sender := NewMemorySender()
	svc := NewService(sender, minutes.NewService(minutes.NewMemoryRepository()), nil)

	err := svc.Dispatch(context.Background(), "ghost", Payload{Type: TypeCall, CallID: "c1"}, "Alice")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	sent := sender.Sent()
	if len(sent) != 1 || sent[0].Notification.Title != "Incoming video call" {
		t.Fatalf("expected english fallback push, got %+v", sent)
	}
}

func TestDispatch_Validation(t *testing.T) {
	svc := NewService(NewMemorySender(), nil, nil)
	if err := svc.Dispatch(context.Background(), "", Payload{CallID: "c1"}, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := svc.Dispatch(context.Background(), "receiver", Payload{}, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
