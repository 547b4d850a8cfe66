package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/hostsync/internal/broadcast"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hostsync/internal/shared/id"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	refreshTimeout = 2 * time.Minute

	// DefaultQueueSize is the number of messages buffered per client
	DefaultQueueSize = 32
)

// Channels lists every channel a client may subscribe to
var Channels = []string{broadcast.ChannelLocale, broadcast.ChannelKernel}

// RefreshFunc re-probes the state behind a channel. Implementations publish
// the result on the bus themselves.
type RefreshFunc func(ctx context.Context, channel string) error

// Hub relays bus events to WebSocket clients
type Hub struct {
	mu      sync.RWMutex
	clients map[id.ClientID]*client

	refresh   RefreshFunc
	refreshes singleflight.Group
	upgrader  websocket.Upgrader
	queueSize int
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

type client struct {
	id   id.ClientID
	send chan []byte

	mu         sync.RWMutex
	channels   map[string]bool
	refreshing map[string]bool
}

func newClient(queueSize int) *client {
	channels := make(map[string]bool, len(Channels))
	for _, ch := range Channels {
		channels[ch] = true
	}
	return &client{
		id:         id.NewClientID(),
		send:       make(chan []byte, queueSize),
		channels:   channels,
		refreshing: make(map[string]bool),
	}
}

// connectedFor derives the connection age from the client's ID.
func (c *client) connectedFor() time.Duration {
	since, err := id.Timestamp(c.id.String())
	if err != nil {
		return 0
	}
	return time.Since(since)
}

func (c *client) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

func (c *client) setChannel(channel string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = on
}

// startRefresh marks channel as refreshing for c. It reports false when a
// refresh is already in flight.
func (c *client) startRefresh(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing[channel] {
		return false
	}
	c.refreshing[channel] = true
	return true
}

func (c *client) endRefresh(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.refreshing, channel)
}

// NewHub creates a hub. refresh may be nil, in which case refresh requests
// are rejected. Until WithOriginCheck is called, only same-origin browser
// upgrades are accepted.
func NewHub(refresh RefreshFunc, logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[id.ClientID]*client),
		refresh: refresh,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		queueSize: DefaultQueueSize,
		logger:    logging.OrNop(logger).Named("ws"),
	}
}

// WithOriginCheck sets the policy deciding which origins may connect
func (h *Hub) WithOriginCheck(allow func(r *http.Request) bool) *Hub {
	h.upgrader.CheckOrigin = allow
	return h
}

// WithMetrics enables connection and message metrics
func (h *Hub) WithMetrics(m *monitoring.Metrics) *Hub {
	h.metrics = m
	return h
}

// WithQueueSize sets the per-client buffer size
func (h *Hub) WithQueueSize(n int) *Hub {
	if n > 0 {
		h.queueSize = n
	}
	return h
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify implements broadcast.Observer. The event is encoded once and queued
// for every subscribed client; clients whose queue is full miss it.
func (h *Hub) Notify(e broadcast.Event) error {
	payload, err := sonic.Marshal(eventMessage{Type: "event", Event: e})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var dropped int
	for _, c := range h.clients {
		if !c.wants(e.Channel) {
			continue
		}
		select {
		case c.send <- payload:
			h.metrics.RecordWSMessage("out", "event")
		default:
			dropped++
			h.metrics.IncDropped()
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%d slow client(s) missed event %s", dropped, e.ID)
	}
	return nil
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cid, c := range h.clients {
		close(c.send)
		delete(h.clients, cid)
		h.metrics.DecWSConnections()
	}
}

func (h *Hub) attach(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.metrics.IncWSConnections()
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	close(c.send)
	delete(h.clients, c.id)
	h.metrics.DecWSConnections()
}

// enqueue queues a direct reply to one client
func (h *Hub) enqueue(c *client, msg interface{}) {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.metrics.IncDropped()
	}
}

// HandleConnection upgrades the request and serves the client until it
// disconnects
func (h *Hub) HandleConnection(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("origin", ctx.GetHeader("Origin")),
			zap.Error(err),
		)
		return
	}

	c := newClient(h.queueSize)
	h.attach(c)
	h.logger.Info("Client connected",
		zap.String("client_id", c.id.String()),
		zap.String("remote", conn.RemoteAddr().String()),
	)

	h.enqueue(c, map[string]interface{}{
		"type":      "system",
		"client_id": c.id,
		"channels":  Channels,
		"timestamp": time.Now().UnixMilli(),
	})

	go h.writePump(conn, c)
	h.readPump(ctx.Request.Context(), conn, c)

	h.detach(c)
	h.logger.Info("Client disconnected",
		zap.String("client_id", c.id.String()),
		zap.Duration("connected_for", c.connectedFor()),
	)
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, c *client) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error", zap.String("client_id", c.id.String()), zap.Error(err))
			}
			return
		}

		var msg types.WSMessage
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			h.sendError(c, "malformed message")
			continue
		}
		h.metrics.RecordWSMessage("in", messageLabel(msg.Type))

		switch msg.Type {
		case "ping":
			h.enqueue(c, map[string]interface{}{"type": "pong", "timestamp": time.Now().UnixMilli()})
		case "subscribe", "unsubscribe":
			if !knownChannel(msg.Channel) {
				h.sendError(c, fmt.Sprintf("unknown channel: %s", msg.Channel))
				continue
			}
			c.setChannel(msg.Channel, msg.Type == "subscribe")
			h.enqueue(c, map[string]interface{}{"type": msg.Type + "d", "channel": msg.Channel})
		case "refresh":
			h.handleRefresh(ctx, c, msg.Channel)
		default:
			h.sendError(c, "unknown message type")
		}
	}
}

func (h *Hub) handleRefresh(ctx context.Context, c *client, channel string) {
	if !knownChannel(channel) {
		h.sendError(c, fmt.Sprintf("unknown channel: %s", channel))
		return
	}
	if h.refresh == nil {
		h.sendError(c, "refresh not available")
		return
	}

	// A repeat request while one is running is dropped; its result reaches
	// the client as the same event.
	if !c.startRefresh(channel) {
		return
	}

	// the snapshot arrives as a regular event; only failures are answered here
	go func() {
		defer c.endRefresh(channel)

		// Shared across clients, so one disconnecting must not cancel it
		_, err, _ := h.refreshes.Do(channel, func() (interface{}, error) {
			refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
			defer cancel()
			return nil, h.refresh(refreshCtx, channel)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			h.sendError(c, fmt.Sprintf("refresh %s: %v", channel, err))
		}
	}()
}

func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("WebSocket write failed", zap.String("client_id", c.id.String()), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) sendError(c *client, msg string) {
	h.enqueue(c, map[string]interface{}{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().UnixMilli(),
	})
}

type eventMessage struct {
	Type string `json:"type"`
	broadcast.Event
}

// messageLabel bounds the metric label set to the known message types
func messageLabel(msgType string) string {
	switch msgType {
	case "ping", "subscribe", "unsubscribe", "refresh":
		return msgType
	}
	return "unknown"
}

func knownChannel(channel string) bool {
	for _, ch := range Channels {
		if ch == channel {
			return true
		}
	}
	return false
}
