package signaling

import "testing"

func TestCanTransition_Monotonic(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusRinging, StatusAccepted},
		{StatusRinging, StatusRejected},
		{StatusRinging, StatusMissed},
		{StatusRinging, StatusEnded},
		{StatusAccepted, StatusEnded},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusAccepted, StatusRinging},
		{StatusRejected, StatusEnded},
		{StatusMissed, StatusAccepted},
		{StatusEnded, StatusRinging},
		{StatusEnded, StatusEnded},
		{StatusAccepted, StatusMissed},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s denied", tc.from, tc.to)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	if StatusRinging.IsTerminal() || StatusAccepted.IsTerminal() {
		t.Fatalf("ringing/accepted are not terminal")
	}
	for _, s := range []Status{StatusRejected, StatusMissed, StatusEnded} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s terminal", s)
		}
	}
}
