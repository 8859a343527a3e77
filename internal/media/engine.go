package media

import "context"

// Engine is the provider-agnostic contract for the real-time media
// transport. The transport itself is an external collaborator; business
// logic talks only to this interface.
//
// Rules:
// - No transport SDK calls outside media adapters.
// - The engine is a per-process singleton: only one channel join is valid
//   at a time, and a new join requires the previous one to have left.
type Engine interface {
	Init(ctx context.Context) error

	// StartCall joins the named channel. audioOnly disables local video.
	StartCall(ctx context.Context, channel string, audioOnly bool, localUID string) error
	// EndCall leaves the current channel. No-op when not joined.
	EndCall(ctx context.Context) error

	ToggleMute(muted bool) error
	ToggleVideo(enabled bool) error
	SwitchCamera() error
	EnableSpeakerphone(enabled bool) error

	// SetEventHandler registers the single consumer of engine events.
	// Must be called before StartCall.
	SetEventHandler(h Handler)
}

// Handler consumes engine events. Called from the engine's own goroutine;
// implementations must not block.
type Handler func(Event)

type EventType string

const (
	// EventLocalJoined reports the local join completing. It drives no
	// session transition on its own: session status is derived from the
	// join call's return value to avoid racing signaling state.
	EventLocalJoined  EventType = "local_joined"
	EventRemoteJoined EventType = "remote_joined"
	EventRemoteLeft   EventType = "remote_left"
	EventLeftChannel  EventType = "left_channel"
	EventError        EventType = "error"
)

type Event struct {
	Type    EventType
	Channel string
	// RemoteUID identifies the remote participant for join/leave events.
	RemoteUID string
	Err       error
}
