package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"callkit/internal/calllog"
	"callkit/internal/media"
	"callkit/internal/signaling"
)

// State is the lifecycle of one call session as seen by its UI.
type State string

const (
	StateInitializing State = "initializing"
	StateCalling      State = "calling"
	StateRinging      State = "ringing"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateEnded        State = "ended"
)

// Outcome explains why a session reached StateEnded.
type Outcome string

const (
	OutcomeNone        Outcome = ""
	OutcomeHangup      Outcome = "hangup"
	OutcomeRejected    Outcome = "rejected"
	OutcomeNoAnswer    Outcome = "no_answer"
	OutcomeRemoteEnded Outcome = "remote_ended"
	OutcomeEngineError Outcome = "engine_error"
	// OutcomeExhausted ends the call like a hangup and tells the UI to
	// offer a top-up.
	OutcomeExhausted Outcome = "minutes_exhausted"
)

// SignalClient is the slice of the signaling service a session needs.
type SignalClient interface {
	EndCall(ctx context.Context, callID string, reason signaling.EndReason) error
	SetCameraEnabled(ctx context.Context, callID string, party signaling.Party, enabled bool) error
	ListenForCallStatus(ctx context.Context, callID string, cb func(signaling.StatusEvent)) (func(), error)
}

// LogFinalizer writes the terminal status and duration of the history entry.
type LogFinalizer interface {
	Finalize(ctx context.Context, id string, status calllog.Status, durationSeconds int) error
}

// BillingMeter runs the per-minute charge while the call is connected.
type BillingMeter interface {
	Start(ctx context.Context, userID, callID string, onExhausted func()) error
	Stop()
}

// Params describes the call this session drives. Intent is the signaling
// record; IsReceiver selects which side of it we are.
type Params struct {
	SelfID     string
	Intent     signaling.Intent
	IsReceiver bool
}

// Controller drives one call session: joins the media channel, follows
// signaling status, runs billing on the caller side and owns teardown.
//
// Teardown is exactly one of Hangup (local decision, finalizes the history
// entry and ends the intent) or a reaction to a remote/terminal event (no
// finalization, the other side owns it). Every path releases the engine,
// stops billing, clears the registry and cancels the status listener.
type Controller struct {
	engine   media.Engine
	signals  SignalClient
	logs     LogFinalizer
	meter    BillingMeter
	registry *Registry
	log      *slog.Logger
	clock    func() time.Time

	params Params

	mu             sync.Mutex
	state          State
	outcome        Outcome
	connectedAt    time.Time
	muted          bool
	cameraOn       bool
	remoteCameraOn bool
	stopListen     func()
}

func NewController(engine media.Engine, signals SignalClient, logs LogFinalizer, meter BillingMeter, registry *Registry, params Params, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		engine:         engine,
		signals:        signals,
		logs:           logs,
		meter:          meter,
		registry:       registry,
		log:            log.With("call_id", params.Intent.CallID),
		clock:          time.Now,
		params:         params,
		state:          StateInitializing,
		cameraOn:       !params.Intent.IsAudioOnly,
		remoteCameraOn: !params.Intent.IsAudioOnly,
	}
}

// Start subscribes to signaling and joins the media channel. If the
// registry already holds this call minimized, the channel is still joined
// from the earlier session: Start maximizes the view and resumes without a
// second join.
func (c *Controller) Start(ctx context.Context) error {
	in := c.params.Intent

	cur, held := c.registry.Current()
	resuming := held && cur.CallID == in.CallID && cur.IsMinimized

	c.engine.SetEventHandler(c.handleEngineEvent)

	stop, err := c.signals.ListenForCallStatus(ctx, in.CallID, c.handleStatusEvent)
	if err != nil {
		c.setEnded(OutcomeEngineError)
		return err
	}
	c.mu.Lock()
	c.stopListen = stop
	c.mu.Unlock()

	if resuming {
		c.registry.Maximize()
		c.mu.Lock()
		c.state = StateConnected
		c.connectedAt = cur.StartTime
		c.mu.Unlock()
		if !c.params.IsReceiver {
			// Idempotent per call, keeps billing armed across a resume.
			if err := c.meter.Start(ctx, c.params.SelfID, in.CallID, c.handleExhausted); err != nil {
				c.log.Error("billing meter start failed", "err", err)
			}
		}
		return nil
	}

	if err := c.engine.Init(ctx); err != nil {
		c.teardown(ctx, OutcomeEngineError, false, false)
		return err
	}

	c.mu.Lock()
	if c.params.IsReceiver {
		c.state = StateConnecting
	} else {
		c.state = StateCalling
	}
	c.mu.Unlock()

	if err := c.engine.StartCall(ctx, in.ChannelName, in.IsAudioOnly, c.params.SelfID); err != nil {
		c.teardown(ctx, OutcomeEngineError, true, true)
		return err
	}

	// The join result, not the local-joined event, moves the caller to
	// ringing; an accepted event may already have raced us to connected.
	c.mu.Lock()
	if c.state == StateCalling {
		c.state = StateRinging
	}
	c.mu.Unlock()
	return nil
}

// Hangup is the local end-of-call decision: it finalizes the history entry
// with the connected duration (zero when never connected), ends the intent
// and releases everything. Idempotent.
func (c *Controller) Hangup(ctx context.Context) error {
	return c.teardown(ctx, OutcomeHangup, true, true)
}

// Minimize hides the call UI while the session keeps running: the engine
// stays joined, billing keeps charging and the status listener stays
// subscribed. No-op once ended.
func (c *Controller) Minimize() {
	c.mu.Lock()
	ended := c.state == StateEnded
	c.mu.Unlock()
	if !ended {
		c.registry.Minimize()
	}
}

func (c *Controller) ToggleMute() error {
	c.mu.Lock()
	target := !c.muted
	c.mu.Unlock()

	if err := c.engine.ToggleMute(target); err != nil {
		return err
	}
	c.mu.Lock()
	c.muted = target
	c.mu.Unlock()
	return nil
}

// ToggleCamera flips the local camera and mirrors the new state into the
// intent so the remote side can react. The mirror is best effort.
func (c *Controller) ToggleCamera(ctx context.Context) error {
	c.mu.Lock()
	target := !c.cameraOn
	c.mu.Unlock()

	if err := c.engine.ToggleVideo(target); err != nil {
		return err
	}
	c.mu.Lock()
	c.cameraOn = target
	c.mu.Unlock()

	if err := c.signals.SetCameraEnabled(ctx, c.params.Intent.CallID, c.party(), target); err != nil {
		c.log.Warn("camera mirror failed", "err", err)
	}
	return nil
}

func (c *Controller) SwitchCamera() error {
	return c.engine.SwitchCamera()
}

func (c *Controller) EnableSpeakerphone(enabled bool) error {
	return c.engine.EnableSpeakerphone(enabled)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

func (c *Controller) ConnectedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectedAt
}

func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Controller) CameraEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cameraOn
}

func (c *Controller) RemoteCameraEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteCameraOn
}

func (c *Controller) handleEngineEvent(ev media.Event) {
	switch ev.Type {
	case media.EventRemoteJoined:
		c.markConnected()
	case media.EventRemoteLeft:
		// The peer left the channel; their side ends the intent and
		// finalizes the history entry.
		c.teardown(context.Background(), OutcomeRemoteEnded, false, false)
	case media.EventError:
		c.log.Error("media engine error", "err", ev.Err)
		c.teardown(context.Background(), OutcomeEngineError, true, true)
	case media.EventLocalJoined, media.EventLeftChannel:
		// Local membership changes are driven by the join/leave call
		// results, and teardown emits left_channel itself.
	}
}

func (c *Controller) handleStatusEvent(ev signaling.StatusEvent) {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	if ev.Intent.CallID == c.params.Intent.CallID {
		if c.params.IsReceiver {
			c.remoteCameraOn = ev.Intent.CallerCameraEnabled
		} else {
			c.remoteCameraOn = ev.Intent.ReceiverCameraEnabled
		}
	}
	c.mu.Unlock()

	switch ev.Status {
	case signaling.StatusAccepted:
		if !c.params.IsReceiver {
			c.markConnected()
		}
	case signaling.StatusRejected:
		// Reject already finalized the history entry server side.
		c.teardown(context.Background(), OutcomeRejected, false, false)
	case signaling.StatusMissed:
		c.teardown(context.Background(), OutcomeNoAnswer, false, false)
	case signaling.StatusEnded:
		c.teardown(context.Background(), OutcomeRemoteEnded, false, false)
	}
}

func (c *Controller) handleExhausted() {
	c.teardown(context.Background(), OutcomeExhausted, true, true)
}

// markConnected is the single entry to StateConnected, reachable from the
// accepted signaling event (caller) or the remote joining the channel.
// connectedAt is set once; re-entry is a no-op.
func (c *Controller) markConnected() {
	in := c.params.Intent

	c.mu.Lock()
	if c.state == StateConnected || c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.state = StateConnected
	if c.connectedAt.IsZero() {
		c.connectedAt = c.clock()
	}
	c.mu.Unlock()

	view := ActiveCallView{
		CallID:      in.CallID,
		ChannelName: in.ChannelName,
		IsReceiver:  c.params.IsReceiver,
	}
	if in.IsAudioOnly {
		view.Type = calllog.CallTypeAudio
	} else {
		view.Type = calllog.CallTypeVideo
	}
	if c.params.IsReceiver {
		view.OtherUserID = in.CallerID
		view.OtherUser = in.Caller
	} else {
		view.OtherUserID = in.ReceiverID
		view.OtherUser = signaling.CallerSnapshot{ID: in.ReceiverID}
	}
	c.registry.StartOrUpdate(view)

	if !c.params.IsReceiver {
		if err := c.meter.Start(context.Background(), c.params.SelfID, in.CallID, c.handleExhausted); err != nil {
			c.log.Error("billing meter start failed", "err", err)
		}
	}
}

// teardown moves the session to StateEnded exactly once and releases every
// resource. finalize writes the history entry with the connected duration;
// signalEnd moves the intent to ended. Both are false on paths where the
// remote side (or the signaling service itself) owns those writes.
func (c *Controller) teardown(ctx context.Context, outcome Outcome, signalEnd, finalize bool) error {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	c.state = StateEnded
	c.outcome = outcome
	connectedAt := c.connectedAt
	stop := c.stopListen
	c.stopListen = nil
	c.mu.Unlock()

	in := c.params.Intent
	var firstErr error

	if finalize && in.CallLogID != "" {
		duration := 0
		if !connectedAt.IsZero() {
			duration = int(c.clock().Sub(connectedAt) / time.Second)
		}
		if err := c.logs.Finalize(ctx, in.CallLogID, calllog.StatusEnded, duration); err != nil && !errors.Is(err, calllog.ErrAlreadyFinalized) {
			c.log.Error("call log finalize failed", "log_id", in.CallLogID, "err", err)
			firstErr = err
		}
	}

	c.meter.Stop()

	if err := c.engine.EndCall(ctx); err != nil {
		c.log.Error("media engine leave failed", "err", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if signalEnd {
		if err := c.signals.EndCall(ctx, in.CallID, signaling.EndReasonEnded); err != nil {
			c.log.Error("signaling end failed", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	c.registry.Clear()
	if stop != nil {
		stop()
	}
	return firstErr
}

func (c *Controller) setEnded(outcome Outcome) {
	c.mu.Lock()
	c.state = StateEnded
	c.outcome = outcome
	c.mu.Unlock()
}

func (c *Controller) party() signaling.Party {
	if c.params.IsReceiver {
		return signaling.PartyReceiver
	}
	return signaling.PartyCaller
}
