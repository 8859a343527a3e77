package memory

import (
	"context"
	"errors"
	"testing"

	"callkit/internal/media"
)

func TestEngine_SingleChannelInvariant(t *testing.T) {
	e := New()
	if err := e.StartCall(context.Background(), "ch1", false, "u1"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := e.StartCall(context.Background(), "ch1", false, "u1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := e.StartCall(context.Background(), "ch2", false, "u1"); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}

	if err := e.EndCall(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := e.StartCall(context.Background(), "ch2", true, "u1"); err != nil {
		t.Fatalf("rejoin after leave failed: %v", err)
	}
	if e.VideoEnabled() {
		t.Fatalf("audio-only join must start with video off")
	}
}

func TestEngine_EmitsLifecycleEvents(t *testing.T) {
	e := New()
	var events []media.EventType
	e.SetEventHandler(func(ev media.Event) { events = append(events, ev.Type) })

	_ = e.Init(context.Background())
	_ = e.StartCall(context.Background(), "ch1", false, "u1")
	e.EmitRemoteJoined("u2")
	e.EmitRemoteLeft("u2")
	_ = e.EndCall(context.Background())
	// Leaving twice emits nothing new.
	_ = e.EndCall(context.Background())

	want := []media.EventType{
		media.EventLocalJoined,
		media.EventRemoteJoined,
		media.EventRemoteLeft,
		media.EventLeftChannel,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], events[i])
		}
	}
}
