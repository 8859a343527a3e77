package session

import (
	"testing"
	"time"

	"callkit/internal/calllog"
)

func TestRegistry_StartSetsStartTimeOnce(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.clock = func() time.Time { return now }

	v := r.StartOrUpdate(ActiveCallView{CallID: "c1", ChannelName: "ch1", Type: calllog.CallTypeVideo})
	if !v.StartTime.Equal(base) {
		t.Fatalf("expected start time %v, got %v", base, v.StartTime)
	}

	// An update for the same channel must not reset the clock.
	now = base.Add(5 * time.Minute)
	r.Minimize()
	v = r.StartOrUpdate(ActiveCallView{CallID: "c1", ChannelName: "ch1", Type: calllog.CallTypeVideo, OtherUserID: "u2"})
	if !v.StartTime.Equal(base) {
		t.Fatalf("same-channel update reset start time to %v", v.StartTime)
	}
	if !v.IsMinimized {
		t.Fatalf("same-channel update must preserve minimized flag")
	}
	if v.OtherUserID != "u2" {
		t.Fatalf("call fields must refresh on update")
	}
}

func TestRegistry_DifferentChannelReplaces(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.clock = func() time.Time { return now }

	r.StartOrUpdate(ActiveCallView{CallID: "c1", ChannelName: "ch1"})
	r.Minimize()

	now = base.Add(time.Minute)
	v := r.StartOrUpdate(ActiveCallView{CallID: "c2", ChannelName: "ch2"})
	if !v.StartTime.Equal(now) {
		t.Fatalf("replacement must take a fresh start time")
	}
	if v.IsMinimized {
		t.Fatalf("replacement must not inherit minimized flag")
	}
	cur, ok := r.Current()
	if !ok || cur.CallID != "c2" {
		t.Fatalf("expected c2 active, got %+v", cur)
	}
}

func TestRegistry_MinimizeMaximizeClear(t *testing.T) {
	r := NewRegistry()

	// All no-ops when empty.
	r.Minimize()
	r.Maximize()
	r.Clear()
	if _, ok := r.Current(); ok {
		t.Fatalf("expected empty registry")
	}

	r.StartOrUpdate(ActiveCallView{CallID: "c1", ChannelName: "ch1"})
	r.Minimize()
	if cur, _ := r.Current(); !cur.IsMinimized {
		t.Fatalf("expected minimized")
	}
	r.Maximize()
	if cur, _ := r.Current(); cur.IsMinimized {
		t.Fatalf("expected maximized")
	}

	r.Clear()
	if _, ok := r.Current(); ok {
		t.Fatalf("expected cleared registry")
	}
}
