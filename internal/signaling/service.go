package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"callkit/internal/calllog"
	"callkit/internal/minutes"
	"callkit/internal/notify"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("signaling: intent not found")
	ErrInvalidArgument     = errors.New("signaling: invalid argument")
	ErrInsufficientMinutes = errors.New("signaling: insufficient minutes")
	ErrCallInProgress      = errors.New("signaling: call already in progress")
)

// Logs is the slice of the call-history service the signaling flow needs.
type Logs interface {
	Create(ctx context.Context, req calllog.CreateRequest) (calllog.Entry, error)
	Finalize(ctx context.Context, id string, status calllog.Status, durationSeconds int) error
}

// BalanceReader checks the caller's minute balance before any write.
type BalanceReader interface {
	Balance(ctx context.Context, userID string) (minutes.Balance, error)
}

// Dispatcher sends call push notifications. Best-effort at call sites.
type Dispatcher interface {
	Dispatch(ctx context.Context, receiverID string, p notify.Payload, callerName string) error
}

// Config tunes the signaling timers.
type Config struct {
	// RingTimeout marks a still-ringing intent as missed after this delay.
	RingTimeout time.Duration
	// GraceDelete is the delay between a terminal status and intent removal.
	GraceDelete time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.RingTimeout <= 0 {
		out.RingTimeout = 30 * time.Second
	}
	if out.GraceDelete <= 0 {
		out.GraceDelete = 5 * time.Second
	}
	return out
}

// Service owns the call-intent lifecycle: creation, status transitions, the
// unanswered-call timeout, push dispatch, and realtime fan-out.
//
// Timer invariant: the ring timer for a call is cancelled whenever the
// intent leaves "ringing" by any path, so a late timeout can never mark an
// already-resolved call as missed.
type Service struct {
	repo  Repository
	bus   Bus
	logs  Logs
	bal   BalanceReader
	push  Dispatcher
	slots SlotGuard
	cfg   Config
	// clock is injectable for deterministic tests.
	clock func() time.Time
	log   *slog.Logger

	mu          sync.Mutex
	ringTimers  map[string]*time.Timer
	graceTimers map[string]*time.Timer
	closed      bool
}

// Repository is the persistence contract for call intents.
// Transition must enforce the monotonic status machine (see CanTransition).
type Repository interface {
	Create(ctx context.Context, in Intent) error
	Get(ctx context.Context, callID string) (Intent, error)
	// Transition applies callID -> to when the stored status permits it.
	// Returns the resulting intent and whether the move applied;
	// ErrNotFound when the document is missing.
	Transition(ctx context.Context, callID string, to Status) (Intent, bool, error)
	SetCameraEnabled(ctx context.Context, callID string, party Party, enabled bool) (Intent, error)
	Delete(ctx context.Context, callID string) error
}

func NewService(repo Repository, bus Bus, logs Logs, bal BalanceReader, push Dispatcher, slots SlotGuard, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:        repo,
		bus:         bus,
		logs:        logs,
		bal:         bal,
		push:        push,
		slots:       slots,
		cfg:         cfg.withDefaults(),
		clock:       time.Now,
		log:         log,
		ringTimers:  make(map[string]*time.Timer),
		graceTimers: make(map[string]*time.Timer),
	}
}

type InitiateRequest struct {
	CallerID    string
	ReceiverID  string
	Caller      CallerSnapshot
	IsAudioOnly bool
}

// InitiateCall creates the history entry and the ringing intent, notifies
// the receiver, and arms the unanswered-call timeout.
//
// Precondition: the caller's minute balance must be positive. On
// ErrInsufficientMinutes nothing has been written.
func (s *Service) InitiateCall(ctx context.Context, req InitiateRequest) (Intent, error) {
	if req.CallerID == "" || req.ReceiverID == "" || req.CallerID == req.ReceiverID {
		return Intent{}, ErrInvalidArgument
	}

	bal, err := s.bal.Balance(ctx, req.CallerID)
	if err != nil {
		return Intent{}, fmt.Errorf("signaling: balance check: %w", err)
	}
	if bal.Minutes <= 0 {
		return Intent{}, ErrInsufficientMinutes
	}

	now := s.clock().UTC()
	callID := uuid.NewString()

	ok, err := s.slots.Claim(ctx, req.CallerID, callID)
	if err != nil {
		return Intent{}, fmt.Errorf("signaling: claim call slot: %w", err)
	}
	if !ok {
		return Intent{}, ErrCallInProgress
	}

	callType := calllog.CallTypeVideo
	if req.IsAudioOnly {
		callType = calllog.CallTypeAudio
	}
	entry, err := s.logs.Create(ctx, calllog.CreateRequest{
		CallerID:   req.CallerID,
		CallerName: req.Caller.DisplayName,
		ReceiverID: req.ReceiverID,
		Type:       callType,
		AvatarRef:  req.Caller.AvatarRef,
	})
	if err != nil {
		s.releaseSlot(req.CallerID, callID)
		return Intent{}, fmt.Errorf("signaling: create call log: %w", err)
	}

	intent := Intent{
		CallID:      callID,
		CallerID:    req.CallerID,
		ReceiverID:  req.ReceiverID,
		ChannelName: channelName(req.CallerID, req.ReceiverID, now),
		IsAudioOnly: req.IsAudioOnly,
		Status:      StatusRinging,
		Caller:      req.Caller,
		CallLogID:   entry.ID,
		// Cameras start on for video calls; toggles mirror into the intent.
		CallerCameraEnabled:   !req.IsAudioOnly,
		ReceiverCameraEnabled: !req.IsAudioOnly,
		CreatedAt:             now,
	}
	if err := s.repo.Create(ctx, intent); err != nil {
		s.releaseSlot(req.CallerID, callID)
		return Intent{}, fmt.Errorf("signaling: create intent: %w", err)
	}

	if err := s.bus.PublishIncoming(ctx, intent); err != nil {
		s.log.Warn("incoming-call publish failed", "call_id", callID, "err", err)
	}
	if err := s.push.Dispatch(ctx, req.ReceiverID, notify.Payload{
		Type:        notify.TypeCall,
		CallID:      callID,
		CallerID:    req.CallerID,
		ChannelName: intent.ChannelName,
		IsAudioOnly: req.IsAudioOnly,
	}, req.Caller.DisplayName); err != nil {
		s.log.Warn("call push failed", "call_id", callID, "err", err)
	}

	s.armRingTimer(callID)
	return intent, nil
}

// AcceptCall marks the intent accepted. A missing document is a no-op: the
// other side may already have torn the call down, which is not an error.
func (s *Service) AcceptCall(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidArgument
	}

	in, applied, err := s.repo.Transition(ctx, callID, StatusAccepted)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !applied {
		return nil
	}

	s.cancelRingTimer(callID)
	s.publishStatus(ctx, in, false)
	return nil
}

// RejectCall marks the intent rejected, finalizes the history entry with
// zero duration, and schedules the grace deletion. Missing document: no-op.
func (s *Service) RejectCall(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidArgument
	}

	in, applied, err := s.repo.Transition(ctx, callID, StatusRejected)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !applied {
		return nil
	}

	s.cancelRingTimer(callID)
	if err := s.logs.Finalize(ctx, in.CallLogID, calllog.StatusRejected, 0); err != nil && !errors.Is(err, calllog.ErrAlreadyFinalized) {
		s.log.Warn("call log finalize failed", "call_id", callID, "err", err)
	}
	s.releaseSlot(in.CallerID, callID)
	s.publishStatus(ctx, in, false)
	s.scheduleGraceDelete(in)
	return nil
}

// EndCall moves the intent to the terminal status for reason. For "missed"
// the history entry is finalized here; for "ended" the connected-duration
// finalization belongs to the session controller. Missing document: no-op.
func (s *Service) EndCall(ctx context.Context, callID string, reason EndReason) error {
	if callID == "" {
		return ErrInvalidArgument
	}

	var to Status
	switch reason {
	case EndReasonEnded:
		to = StatusEnded
	case EndReasonMissed:
		to = StatusMissed
	default:
		return ErrInvalidArgument
	}

	in, applied, err := s.repo.Transition(ctx, callID, to)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !applied {
		return nil
	}

	s.cancelRingTimer(callID)
	if to == StatusMissed {
		if err := s.logs.Finalize(ctx, in.CallLogID, calllog.StatusMissed, 0); err != nil && !errors.Is(err, calllog.ErrAlreadyFinalized) {
			s.log.Warn("call log finalize failed", "call_id", callID, "err", err)
		}
	}
	s.releaseSlot(in.CallerID, callID)
	s.publishStatus(ctx, in, false)
	s.scheduleGraceDelete(in)
	return nil
}

// SetCameraEnabled mirrors a local camera toggle into the intent so the
// remote side can react. Missing document: no-op (the call is gone).
func (s *Service) SetCameraEnabled(ctx context.Context, callID string, party Party, enabled bool) error {
	if callID == "" {
		return ErrInvalidArgument
	}

	in, err := s.repo.SetCameraEnabled(ctx, callID, party, enabled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	s.publishStatus(ctx, in, false)
	return nil
}

// GetIntent returns the current intent document.
func (s *Service) GetIntent(ctx context.Context, callID string) (Intent, error) {
	if callID == "" {
		return Intent{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, callID)
}

// ListenForIncomingCalls subscribes to newly created ringing intents for a
// user. The returned stop func cancels the subscription.
func (s *Service) ListenForIncomingCalls(ctx context.Context, userID string, cb func(Intent)) (func(), error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	return s.bus.SubscribeIncoming(ctx, userID, cb)
}

// ListenForCallStatus subscribes to every change of one intent. If the
// document is already gone a synthetic ended event is delivered immediately.
func (s *Service) ListenForCallStatus(ctx context.Context, callID string, cb func(StatusEvent)) (func(), error) {
	if callID == "" {
		return nil, ErrInvalidArgument
	}

	stop, err := s.bus.SubscribeStatus(ctx, callID, cb)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Get(ctx, callID); errors.Is(err, ErrNotFound) {
		cb(StatusEvent{CallID: callID, Status: StatusEnded, Deleted: true})
	}
	return stop, nil
}

// Close cancels all pending timers. Intended for process shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.ringTimers {
		t.Stop()
		delete(s.ringTimers, id)
	}
	for id, t := range s.graceTimers {
		t.Stop()
		delete(s.graceTimers, id)
	}
}

func (s *Service) armRingTimer(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ringTimers[callID] = time.AfterFunc(s.cfg.RingTimeout, func() {
		s.handleRingTimeout(callID)
	})
}

func (s *Service) cancelRingTimer(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.ringTimers[callID]; ok {
		t.Stop()
		delete(s.ringTimers, callID)
	}
}

// handleRingTimeout resolves a still-ringing call as missed. The repository
// transition guard makes this a no-op if the call was resolved in the narrow
// window between timer fire and this write.
func (s *Service) handleRingTimeout(callID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.mu.Lock()
	delete(s.ringTimers, callID)
	s.mu.Unlock()

	in, applied, err := s.repo.Transition(ctx, callID, StatusMissed)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("ring timeout transition failed", "call_id", callID, "err", err)
		}
		return
	}
	if !applied {
		return
	}

	if err := s.logs.Finalize(ctx, in.CallLogID, calllog.StatusMissed, 0); err != nil && !errors.Is(err, calllog.ErrAlreadyFinalized) {
		s.log.Warn("call log finalize failed", "call_id", callID, "err", err)
	}
	if err := s.push.Dispatch(ctx, in.ReceiverID, notify.Payload{
		Type:        notify.TypeMissedCall,
		CallID:      callID,
		CallerID:    in.CallerID,
		ChannelName: in.ChannelName,
		IsAudioOnly: in.IsAudioOnly,
	}, in.Caller.DisplayName); err != nil {
		s.log.Warn("missed-call push failed", "call_id", callID, "err", err)
	}
	s.releaseSlot(in.CallerID, callID)
	s.publishStatus(ctx, in, false)
	s.scheduleGraceDelete(in)
}

func (s *Service) scheduleGraceDelete(in Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.graceTimers[in.CallID]; ok {
		return
	}
	s.graceTimers[in.CallID] = time.AfterFunc(s.cfg.GraceDelete, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.mu.Lock()
		delete(s.graceTimers, in.CallID)
		s.mu.Unlock()

		if err := s.repo.Delete(ctx, in.CallID); err != nil {
			s.log.Error("intent delete failed", "call_id", in.CallID, "err", err)
			return
		}
		s.publishStatus(ctx, Intent{CallID: in.CallID, Status: StatusEnded}, true)
	})
}

func (s *Service) publishStatus(ctx context.Context, in Intent, deleted bool) {
	ev := StatusEvent{CallID: in.CallID, Status: in.Status, Deleted: deleted, Intent: in}
	if err := s.bus.PublishStatus(ctx, ev); err != nil {
		s.log.Warn("status publish failed", "call_id", in.CallID, "err", err)
	}
}

func (s *Service) releaseSlot(userID, callID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.slots.Release(ctx, userID, callID); err != nil {
		s.log.Warn("call slot release failed", "user_id", userID, "call_id", callID, "err", err)
	}
}

// channelName is unique per pair and initiate timestamp.
func channelName(callerID, receiverID string, at time.Time) string {
	return fmt.Sprintf("call_%s_%s_%d", callerID, receiverID, at.UnixMilli())
}
