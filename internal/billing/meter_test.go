package billing

import (
	"context"
	"testing"
	"time"

	"callkit/internal/minutes"
)

func newTestMeter(t *testing.T, balance int, interval time.Duration) (*Meter, *minutes.MemoryRepository) {
	t.Helper()
	repo := minutes.NewMemoryRepository()
	repo.SetBalance("caller", balance)
	m := NewMeter(minutes.NewService(repo), interval, nil)
	t.Cleanup(m.Stop)
	return m, repo
}

func TestMeter_ChargesConnectMinuteImmediately(t *testing.T) {
	m, repo := newTestMeter(t, 10, time.Hour)

	if err := m.Start(context.Background(), "caller", "call-1", nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := len(repo.Ledger()); got != 1 {
		t.Fatalf("expected 1 charge at connect, got %d", got)
	}
	if _, ok := m.Running(); !ok {
		t.Fatalf("expected meter running")
	}
}

func TestMeter_StartSameCallIsNoOp(t *testing.T) {
	m, repo := newTestMeter(t, 10, time.Hour)

	if err := m.Start(context.Background(), "caller", "call-1", nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := m.Start(context.Background(), "caller", "call-1", nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := len(repo.Ledger()); got != 1 {
		t.Fatalf("repeat start double-charged: %d entries", got)
	}
}

func TestMeter_StartDifferentCallStopsPrevious(t *testing.T) {
	m, _ := newTestMeter(t, 10, time.Hour)

	if err := m.Start(context.Background(), "caller", "call-1", nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := m.Start(context.Background(), "caller", "call-2", nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	callID, ok := m.Running()
	if !ok || callID != "call-2" {
		t.Fatalf("expected call-2 running, got %q/%v", callID, ok)
	}
}

func TestMeter_ExhaustionStopsAndNotifies(t *testing.T) {
	m, repo := newTestMeter(t, 3, 20*time.Millisecond)

	exhausted := make(chan struct{})
	err := m.Start(context.Background(), "caller", "call-1", func() { close(exhausted) })
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	select {
	case <-exhausted:
	case <-time.After(2 * time.Second):
		t.Fatalf("exhaustion callback never fired")
	}

	// Connect minute plus two interval charges spend the whole balance.
	if got := len(repo.Ledger()); got != 3 {
		t.Fatalf("expected 3 charges, got %d", got)
	}
	if _, ok := m.Running(); ok {
		t.Fatalf("expected meter stopped after exhaustion")
	}
}

func TestMeter_ZeroBalanceEndsWithoutDecrement(t *testing.T) {
	m, repo := newTestMeter(t, 0, time.Hour)

	fired := false
	if err := m.Start(context.Background(), "caller", "call-1", func() { fired = true }); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !fired {
		t.Fatalf("expected immediate exhaustion at zero balance")
	}
	if got := len(repo.Ledger()); got != 0 {
		t.Fatalf("zero balance must not be charged, got %d entries", got)
	}
	if _, ok := m.Running(); ok {
		t.Fatalf("expected meter idle")
	}
}

func TestMeter_StopSafeWhenIdle(t *testing.T) {
	m, _ := newTestMeter(t, 1, time.Hour)
	m.Stop()
	m.Stop()
}

func TestMeter_StartValidation(t *testing.T) {
	m, _ := newTestMeter(t, 1, time.Hour)
	if err := m.Start(context.Background(), "", "call-1", nil); err == nil {
		t.Fatalf("expected error")
	}
	if err := m.Start(context.Background(), "caller", "", nil); err == nil {
		t.Fatalf("expected error")
	}
}
