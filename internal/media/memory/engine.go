// Package memory provides an in-process media.Engine used by tests and
// local development. It models channel membership and device toggles
// without any real transport.
package memory

import (
	"context"
	"errors"
	"sync"

	"callkit/internal/media"
)

var (
	ErrNotInitialized = errors.New("media/memory: engine not initialized")
	ErrAlreadyJoined  = errors.New("media/memory: already in a channel")
)

type Engine struct {
	mu          sync.Mutex
	initialized bool
	handler     media.Handler
	channel     string
	localUID    string
	audioOnly   bool

	muted        bool
	videoEnabled bool
	frontCamera  bool
	speakerphone bool
	joinCount    int
}

var _ media.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{frontCamera: true}
}

func (e *Engine) Init(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = true
	return nil
}

func (e *Engine) SetEventHandler(h media.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

func (e *Engine) StartCall(_ context.Context, channel string, audioOnly bool, localUID string) error {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.channel != "" {
		e.mu.Unlock()
		return ErrAlreadyJoined
	}
	e.channel = channel
	e.localUID = localUID
	e.audioOnly = audioOnly
	e.muted = false
	e.videoEnabled = !audioOnly
	e.joinCount++
	e.mu.Unlock()

	e.emit(media.Event{Type: media.EventLocalJoined, Channel: channel})
	return nil
}

func (e *Engine) EndCall(_ context.Context) error {
	e.mu.Lock()
	channel := e.channel
	e.channel = ""
	e.localUID = ""
	e.mu.Unlock()

	if channel != "" {
		e.emit(media.Event{Type: media.EventLeftChannel, Channel: channel})
	}
	return nil
}

func (e *Engine) ToggleMute(muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
	return nil
}

func (e *Engine) ToggleVideo(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.videoEnabled = enabled
	return nil
}

func (e *Engine) SwitchCamera() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frontCamera = !e.frontCamera
	return nil
}

func (e *Engine) EnableSpeakerphone(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speakerphone = enabled
	return nil
}

// EmitRemoteJoined simulates the remote participant joining the channel.
func (e *Engine) EmitRemoteJoined(uid string) {
	e.emit(media.Event{Type: media.EventRemoteJoined, Channel: e.Channel(), RemoteUID: uid})
}

// EmitRemoteLeft simulates the remote participant leaving the channel.
func (e *Engine) EmitRemoteLeft(uid string) {
	e.emit(media.Event{Type: media.EventRemoteLeft, Channel: e.Channel(), RemoteUID: uid})
}

// EmitError simulates a fatal transport failure.
func (e *Engine) EmitError(err error) {
	e.emit(media.Event{Type: media.EventError, Channel: e.Channel(), Err: err})
}

func (e *Engine) Channel() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channel
}

func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *Engine) VideoEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.videoEnabled
}

func (e *Engine) Speakerphone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speakerphone
}

func (e *Engine) JoinCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.joinCount
}

func (e *Engine) emit(ev media.Event) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h(ev)
	}
}
