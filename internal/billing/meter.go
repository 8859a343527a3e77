package billing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"callkit/internal/minutes"
)

var ErrInvalidArgument = errors.New("billing: invalid argument")

// Charger posts one per-minute billing decrement.
type Charger interface {
	ChargeMinute(ctx context.Context, userID, callID string) (minutes.ChargeResult, error)
}

// Meter decrements the caller's minute balance while a call is connected:
// one minute immediately at connect, then one per elapsed interval.
//
// Ownership: at most one call runs the meter at a time. Starting a
// different call stops the running meter first; starting the same call
// again is a no-op. Only the caller side runs the meter.
type Meter struct {
	charger  Charger
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	callID string
	userID string
	stopCh chan struct{}
}

func NewMeter(charger Charger, interval time.Duration, log *slog.Logger) *Meter {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Meter{charger: charger, interval: interval, log: log}
}

// Start charges the connect minute and arms the repeating charge.
// onExhausted fires (once) when a charge finds the balance exhausted; the
// meter has already stopped itself by then.
func (m *Meter) Start(ctx context.Context, userID, callID string, onExhausted func()) error {
	if userID == "" || callID == "" {
		return ErrInvalidArgument
	}
	if onExhausted == nil {
		onExhausted = func() {}
	}

	m.mu.Lock()
	if m.stopCh != nil {
		if m.callID == callID {
			m.mu.Unlock()
			return nil
		}
		m.stopLocked()
	}
	stopCh := make(chan struct{})
	m.callID = callID
	m.userID = userID
	m.stopCh = stopCh
	m.mu.Unlock()

	// Connect minute, charged immediately.
	if m.charge(ctx, userID, callID) {
		m.stopFor(callID)
		onExhausted()
		return nil
	}

	go m.run(stopCh, userID, callID, onExhausted)
	return nil
}

// Stop cancels the repeating charge. Safe to call when not running.
func (m *Meter) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Running reports the call currently metered, if any.
func (m *Meter) Running() (callID string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callID, m.stopCh != nil
}

func (m *Meter) run(stopCh chan struct{}, userID, callID string, onExhausted func()) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			exhausted := m.charge(ctx, userID, callID)
			cancel()
			if exhausted {
				m.stopFor(callID)
				onExhausted()
				return
			}
		}
	}
}

// charge posts one decrement and reports whether the balance is exhausted.
// A charge that does not apply means the balance was already spent; a charge
// that lands on zero spends the last minute. Either way the call must end.
func (m *Meter) charge(ctx context.Context, userID, callID string) (exhausted bool) {
	res, err := m.charger.ChargeMinute(ctx, userID, callID)
	if err != nil {
		// Store failure: keep the call up, the next tick retries.
		m.log.Error("minute charge failed", "user_id", userID, "call_id", callID, "err", err)
		return false
	}
	return !res.Applied || res.Remaining == 0
}

// stopFor stops the meter only if callID still owns it, so a charge result
// from an old call cannot cancel a newer one.
func (m *Meter) stopFor(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callID == callID {
		m.stopLocked()
	}
}

func (m *Meter) stopLocked() {
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	m.callID = ""
	m.userID = ""
}
