package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"callkit/internal/auth"
	"callkit/internal/notify"
	"callkit/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tokens, not origins, authenticate this endpoint.
	CheckOrigin: func(*http.Request) bool { return true },
}

var errHubClosed = errors.New("gateway: hub closed")

// Hub tracks connected clients and wires each one to its incoming-call and
// push relay subscriptions for the lifetime of the connection.
type Hub struct {
	incoming IncomingSource
	push     PushSource
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

func NewHub(incoming IncomingSource, push PushSource, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		incoming: incoming,
		push:     push,
		log:      log,
		clients:  make(map[*Client]struct{}),
	}
}

// ServeWS upgrades the request and serves the client until it disconnects.
// Requires RequireAccessToken upstream.
func (h *Hub) ServeWS(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "user_id", userID, "err", err)
		return
	}

	client := newClient(userID, conn)
	if err := h.register(client); err != nil {
		h.log.Error("client subscriptions failed", "user_id", userID, "err", err)
		client.close()
		return
	}
	h.log.Info("websocket client connected", "user_id", userID)

	go client.writePump()
	client.readPump()

	h.unregister(client)
	h.log.Info("websocket client disconnected", "user_id", userID)
}

// Close disconnects every client. New connections are refused afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.stopSubscriptions()
		c.close()
	}
}

func (h *Hub) register(c *Client) error {
	ctx := context.Background()

	stopIncoming, err := h.incoming.ListenForIncomingCalls(ctx, c.userID, func(in signaling.Intent) {
		intent := in
		c.Send(Frame{Event: EventIncomingCall, IncomingCall: &intent})
	})
	if err != nil {
		return err
	}
	c.stops = append(c.stops, stopIncoming)

	stopPush, err := h.push.SubscribePush(ctx, c.userID, func(n notify.Notification) {
		note := n
		c.Send(Frame{Event: EventPush, Push: &note})
	})
	if err != nil {
		c.stopSubscriptions()
		return err
	}
	c.stops = append(c.stops, stopPush)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.stopSubscriptions()
		return errHubClosed
	}
	h.clients[c] = struct{}{}
	return nil
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.stopSubscriptions()
	}
	c.close()
}
