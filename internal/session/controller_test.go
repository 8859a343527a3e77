package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callkit/internal/calllog"
	mediamem "callkit/internal/media/memory"
	"callkit/internal/signaling"
)

type stubSignals struct {
	mu         sync.Mutex
	endReasons []signaling.EndReason
	cameras    []bool
	cb         func(signaling.StatusEvent)
	stopped    bool
}

func (s *stubSignals) EndCall(_ context.Context, _ string, reason signaling.EndReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endReasons = append(s.endReasons, reason)
	return nil
}

func (s *stubSignals) SetCameraEnabled(_ context.Context, _ string, _ signaling.Party, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = append(s.cameras, enabled)
	return nil
}

func (s *stubSignals) ListenForCallStatus(_ context.Context, _ string, cb func(signaling.StatusEvent)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopped = true
	}, nil
}

func (s *stubSignals) emit(ev signaling.StatusEvent) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	cb(ev)
}

func (s *stubSignals) ends() []signaling.EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]signaling.EndReason, len(s.endReasons))
	copy(out, s.endReasons)
	return out
}

type finalization struct {
	id       string
	status   calllog.Status
	duration int
}

type stubLogs struct {
	mu     sync.Mutex
	finals []finalization
}

func (l *stubLogs) Finalize(_ context.Context, id string, status calllog.Status, durationSeconds int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finals = append(l.finals, finalization{id, status, durationSeconds})
	return nil
}

func (l *stubLogs) all() []finalization {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]finalization, len(l.finals))
	copy(out, l.finals)
	return out
}

type stubMeter struct {
	mu          sync.Mutex
	starts      int
	stops       int
	onExhausted func()
}

func (m *stubMeter) Start(_ context.Context, _, _ string, onExhausted func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	m.onExhausted = onExhausted
	return nil
}

func (m *stubMeter) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

func (m *stubMeter) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops
}

func testIntent() signaling.Intent {
	return signaling.Intent{
		CallID:      "c1",
		CallerID:    "caller",
		ReceiverID:  "receiver",
		ChannelName: "ch1",
		Status:      signaling.StatusRinging,
		Caller:      signaling.CallerSnapshot{ID: "caller", DisplayName: "Alice"},
		CallLogID:   "log1",
	}
}

type harness struct {
	ctrl     *Controller
	engine   *mediamem.Engine
	signals  *stubSignals
	logs     *stubLogs
	meter    *stubMeter
	registry *Registry
}

func newHarness(t *testing.T, isReceiver bool, registry *Registry, engine *mediamem.Engine) *harness {
	t.Helper()
	if registry == nil {
		registry = NewRegistry()
	}
	if engine == nil {
		engine = mediamem.New()
	}
	h := &harness{
		engine:   engine,
		signals:  &stubSignals{},
		logs:     &stubLogs{},
		meter:    &stubMeter{},
		registry: registry,
	}
	selfID := "caller"
	if isReceiver {
		selfID = "receiver"
	}
	h.ctrl = NewController(h.engine, h.signals, h.logs, h.meter, h.registry, Params{
		SelfID:     selfID,
		Intent:     testIntent(),
		IsReceiver: isReceiver,
	}, nil)
	return h
}

func TestController_CallerRingsThenConnectsOnAccept(t *testing.T) {
	h := newHarness(t, false, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := h.ctrl.State(); got != StateRinging {
		t.Fatalf("expected ringing after join, got %s", got)
	}
	if h.engine.Channel() != "ch1" {
		t.Fatalf("expected joined channel ch1, got %q", h.engine.Channel())
	}

	h.signals.emit(signaling.StatusEvent{CallID: "c1", Status: signaling.StatusAccepted})

	if got := h.ctrl.State(); got != StateConnected {
		t.Fatalf("expected connected, got %s", got)
	}
	if starts, _ := h.meter.counts(); starts != 1 {
		t.Fatalf("caller side must start billing, starts=%d", starts)
	}
	cur, ok := h.registry.Current()
	if !ok || cur.CallID != "c1" || cur.OtherUserID != "receiver" {
		t.Fatalf("registry not populated: %+v", cur)
	}
}

func TestController_ReceiverConnectsOnRemoteJoin(t *testing.T) {
	h := newHarness(t, true, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := h.ctrl.State(); got != StateConnecting {
		t.Fatalf("expected connecting, got %s", got)
	}

	h.engine.EmitRemoteJoined("caller")

	if got := h.ctrl.State(); got != StateConnected {
		t.Fatalf("expected connected, got %s", got)
	}
	if starts, _ := h.meter.counts(); starts != 0 {
		t.Fatalf("receiver must not run billing, starts=%d", starts)
	}
	cur, _ := h.registry.Current()
	if cur.OtherUserID != "caller" || cur.OtherUser.DisplayName != "Alice" {
		t.Fatalf("registry should show the caller: %+v", cur)
	}
}

func TestController_HangupFinalizesWithConnectedDuration(t *testing.T) {
	h := newHarness(t, false, nil, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	h.ctrl.clock = func() time.Time { return now }

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	h.signals.emit(signaling.StatusEvent{CallID: "c1", Status: signaling.StatusAccepted})

	now = base.Add(95 * time.Second)
	if err := h.ctrl.Hangup(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	finals := h.logs.all()
	if len(finals) != 1 {
		t.Fatalf("expected 1 finalization, got %d", len(finals))
	}
	if finals[0].id != "log1" || finals[0].status != calllog.StatusEnded || finals[0].duration != 95 {
		t.Fatalf("unexpected finalization: %+v", finals[0])
	}
	if ends := h.signals.ends(); len(ends) != 1 || ends[0] != signaling.EndReasonEnded {
		t.Fatalf("expected one ended signal, got %v", ends)
	}
	if _, stops := h.meter.counts(); stops == 0 {
		t.Fatalf("hangup must stop billing")
	}
	if h.engine.Channel() != "" {
		t.Fatalf("hangup must leave the channel")
	}
	if _, ok := h.registry.Current(); ok {
		t.Fatalf("hangup must clear the registry")
	}
	if h.ctrl.Outcome() != OutcomeHangup {
		t.Fatalf("expected hangup outcome, got %s", h.ctrl.Outcome())
	}

	// Idempotent: a second hangup changes nothing.
	if err := h.ctrl.Hangup(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(h.logs.all()) != 1 || len(h.signals.ends()) != 1 {
		t.Fatalf("repeat hangup must be a no-op")
	}
}

func TestController_HangupBeforeConnectHasZeroDuration(t *testing.T) {
	h := newHarness(t, false, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := h.ctrl.Hangup(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	finals := h.logs.all()
	if len(finals) != 1 || finals[0].duration != 0 {
		t.Fatalf("expected zero-duration finalization, got %+v", finals)
	}
}

func TestController_RejectedEndsWithoutLocalWrites(t *testing.T) {
	h := newHarness(t, false, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	h.signals.emit(signaling.StatusEvent{CallID: "c1", Status: signaling.StatusRejected})

	if h.ctrl.State() != StateEnded || h.ctrl.Outcome() != OutcomeRejected {
		t.Fatalf("expected ended/rejected, got %s/%s", h.ctrl.State(), h.ctrl.Outcome())
	}
	// Reject and its history write belong to the signaling side.
	if len(h.logs.all()) != 0 {
		t.Fatalf("rejected call must not be finalized locally")
	}
	if len(h.signals.ends()) != 0 {
		t.Fatalf("rejected call must not be ended again")
	}
	if h.engine.Channel() != "" {
		t.Fatalf("expected channel released")
	}
}

func TestController_MissedTimeoutEndsAsNoAnswer(t *testing.T) {
	h := newHarness(t, false, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	h.signals.emit(signaling.StatusEvent{CallID: "c1", Status: signaling.StatusMissed})

	if h.ctrl.Outcome() != OutcomeNoAnswer {
		t.Fatalf("expected no_answer, got %s", h.ctrl.Outcome())
	}
}

func TestController_RemoteEndDoesNotFinalize(t *testing.T) {
	h := newHarness(t, true, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	h.engine.EmitRemoteJoined("caller")
	h.signals.emit(signaling.StatusEvent{CallID: "c1", Status: signaling.StatusEnded})

	if h.ctrl.Outcome() != OutcomeRemoteEnded {
		t.Fatalf("expected remote_ended, got %s", h.ctrl.Outcome())
	}
	// Exactly-once finalization: only the hanging-up side writes it.
	if len(h.logs.all()) != 0 {
		t.Fatalf("remote end must not finalize locally")
	}
	if len(h.signals.ends()) != 0 {
		t.Fatalf("remote end must not signal end again")
	}
}

func TestController_MinimizeKeepsSessionAlive(t *testing.T) {
	h := newHarness(t, false, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	h.signals.emit(signaling.StatusEvent{CallID: "c1", Status: signaling.StatusAccepted})

	h.ctrl.Minimize()

	cur, ok := h.registry.Current()
	if !ok || !cur.IsMinimized {
		t.Fatalf("expected minimized active call, got %+v", cur)
	}
	if h.engine.Channel() != "ch1" {
		t.Fatalf("minimize must keep the channel joined")
	}
	if _, stops := h.meter.counts(); stops != 0 {
		t.Fatalf("minimize must not stop billing")
	}
	if h.ctrl.State() != StateConnected {
		t.Fatalf("minimize must not change state, got %s", h.ctrl.State())
	}
}

func TestController_ResumeSkipsRejoin(t *testing.T) {
	registry := NewRegistry()
	engine := mediamem.New()

	first := newHarness(t, false, registry, engine)
	if err := first.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	first.signals.emit(signaling.StatusEvent{CallID: "c1", Status: signaling.StatusAccepted})
	first.ctrl.Minimize()

	second := newHarness(t, false, registry, engine)
	if err := second.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if second.ctrl.State() != StateConnected {
		t.Fatalf("resume must land connected, got %s", second.ctrl.State())
	}
	if engine.JoinCount() != 1 {
		t.Fatalf("resume must not rejoin, joins=%d", engine.JoinCount())
	}
	cur, _ := registry.Current()
	if cur.IsMinimized {
		t.Fatalf("resume must maximize the view")
	}
}

func TestController_ExhaustionRunsHangupSequence(t *testing.T) {
	h := newHarness(t, false, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	h.signals.emit(signaling.StatusEvent{CallID: "c1", Status: signaling.StatusAccepted})

	h.meter.mu.Lock()
	onExhausted := h.meter.onExhausted
	h.meter.mu.Unlock()
	if onExhausted == nil {
		t.Fatalf("meter never armed")
	}
	onExhausted()

	if h.ctrl.Outcome() != OutcomeExhausted {
		t.Fatalf("expected minutes_exhausted, got %s", h.ctrl.Outcome())
	}
	if len(h.logs.all()) != 1 {
		t.Fatalf("exhaustion must finalize the history entry")
	}
	if ends := h.signals.ends(); len(ends) != 1 || ends[0] != signaling.EndReasonEnded {
		t.Fatalf("exhaustion must end the intent, got %v", ends)
	}
	if h.engine.Channel() != "" {
		t.Fatalf("exhaustion must release the engine")
	}
}

func TestController_EngineErrorForcesTeardown(t *testing.T) {
	h := newHarness(t, false, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	h.engine.EmitError(errors.New("transport lost"))

	if h.ctrl.State() != StateEnded || h.ctrl.Outcome() != OutcomeEngineError {
		t.Fatalf("expected ended/engine_error, got %s/%s", h.ctrl.State(), h.ctrl.Outcome())
	}
	if len(h.signals.ends()) != 1 {
		t.Fatalf("engine error must end the intent")
	}
	if h.engine.Channel() != "" {
		t.Fatalf("engine error must leave the channel")
	}
}

func TestController_ToggleCameraMirrorsState(t *testing.T) {
	h := newHarness(t, false, nil, nil)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !h.ctrl.CameraEnabled() {
		t.Fatalf("video call starts with camera on")
	}

	if err := h.ctrl.ToggleCamera(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if h.ctrl.CameraEnabled() {
		t.Fatalf("expected camera off after toggle")
	}
	h.signals.mu.Lock()
	cameras := h.signals.cameras
	h.signals.mu.Unlock()
	if len(cameras) != 1 || cameras[0] {
		t.Fatalf("toggle must mirror 'off' to signaling, got %v", cameras)
	}

	// Remote flag tracks the intent embedded in status events.
	h.signals.emit(signaling.StatusEvent{
		CallID: "c1",
		Status: signaling.StatusAccepted,
		Intent: signaling.Intent{CallID: "c1", ReceiverCameraEnabled: false},
	})
	if h.ctrl.RemoteCameraEnabled() {
		t.Fatalf("expected remote camera off")
	}
}
