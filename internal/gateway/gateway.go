// Package gateway fans realtime call events out to connected websocket
// clients: incoming-call announcements and the push relay frames a device
// would otherwise receive as a push notification.
package gateway

import (
	"context"

	"callkit/internal/notify"
	"callkit/internal/signaling"
)

// Frame is the wire envelope sent to websocket clients.
type Frame struct {
	Event        string               `json:"event"`
	IncomingCall *signaling.Intent    `json:"incoming_call,omitempty"`
	Push         *notify.Notification `json:"push,omitempty"`
}

const (
	EventIncomingCall = "incoming_call"
	EventPush         = "push"
)

// IncomingSource announces new ringing calls for one user.
type IncomingSource interface {
	ListenForIncomingCalls(ctx context.Context, userID string, cb func(signaling.Intent)) (func(), error)
}

// PushSource relays the user's push notifications for in-app delivery.
type PushSource interface {
	SubscribePush(ctx context.Context, userID string, cb func(notify.Notification)) (func(), error)
}
