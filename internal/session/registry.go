// Package session hosts the in-process call session layer: the active-call
// registry that survives screen changes, and the controller that drives one
// call from join to teardown.
package session

import (
	"sync"
	"time"

	"callkit/internal/calllog"
	"callkit/internal/signaling"
)

// ActiveCallView is the single source of truth for "is a call in
// progress". It outlives any one call screen so a minimized call can be
// resumed without rejoining the channel.
type ActiveCallView struct {
	Type        calllog.CallType
	CallID      string
	ChannelName string
	OtherUserID string
	OtherUser   signaling.CallerSnapshot
	IsReceiver  bool
	// StartTime is set once, when the view is first created for a channel,
	// and preserved across updates so elapsed-time displays never reset.
	StartTime   time.Time
	IsMinimized bool
}

// Registry holds at most one ActiveCallView. All methods are safe for
// concurrent use.
type Registry struct {
	mu    sync.Mutex
	view  *ActiveCallView
	clock func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{clock: time.Now}
}

// StartOrUpdate installs a view for v.ChannelName. If a view for the same
// channel already exists its StartTime and IsMinimized are preserved and
// only the call fields are refreshed. A different channel replaces the
// current view outright.
func (r *Registry) StartOrUpdate(v ActiveCallView) ActiveCallView {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.view != nil && r.view.ChannelName == v.ChannelName {
		v.StartTime = r.view.StartTime
		v.IsMinimized = r.view.IsMinimized
		*r.view = v
		return v
	}

	if v.StartTime.IsZero() {
		v.StartTime = r.clock()
	}
	v.IsMinimized = false
	r.view = &v
	return v
}

// Clear removes the active call. Safe when none is set.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = nil
}

// Minimize marks the active call minimized. No-op when none is set.
func (r *Registry) Minimize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view != nil {
		r.view.IsMinimized = true
	}
}

// Maximize clears the minimized flag. No-op when none is set.
func (r *Registry) Maximize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view != nil {
		r.view.IsMinimized = false
	}
}

// Current returns a copy of the active view, if any.
func (r *Registry) Current() (ActiveCallView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view == nil {
		return ActiveCallView{}, false
	}
	return *r.view, true
}
