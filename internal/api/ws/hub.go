package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/navhost/internal/domain/window"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
	maxMessage = 4096
)

// Frame types that are not delegate notifications.
const (
	FrameSystem = "system"
	FramePong   = "pong"
	FrameError  = "error"
)

// Frame is one message on the stream. Notification frames use the delegate
// notification names as Type.
type Frame struct {
	Type      string `json:"type"`
	WindowID  string `json:"window_id,omitempty"`
	ChildID   string `json:"child_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	Proceed   *bool  `json:"proceed,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// inbound is a message from a client.
type inbound struct {
	Type     string `json:"type"`
	WindowID string `json:"window_id"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	filter id.WindowID
}

func (c *client) wants(windowID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter == "" || windowID == "" || string(c.filter) == windowID
}

func (c *client) subscribe(windowID id.WindowID) {
	c.mu.Lock()
	c.filter = windowID
	c.mu.Unlock()
}

// Hub streams delegate notifications to WebSocket clients. It implements
// window.Delegate; its callbacks never block the browser loop, a client that
// cannot keep up loses frames.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client

	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

var _ window.Delegate = (*Hub)(nil)

// NewHub creates a hub without clients.
func NewHub(metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		metrics: metrics,
		logger:  logging.OrNop(logger).With(zap.String("component", "ws")),
		now:     time.Now,
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) OnStartLoading(w *window.Controller, url string) {
	h.Broadcast(Frame{Type: window.NotifyStartLoading, WindowID: w.ID().String(), URL: url})
}

func (h *Hub) OnAddressBarChanged(w *window.Controller, url string) {
	h.Broadcast(Frame{Type: window.NotifyAddressBarChanged, WindowID: w.ID().String(), URL: url})
}

func (h *Hub) OnLoad(w *window.Controller) {
	h.Broadcast(Frame{
		Type:     window.NotifyLoad,
		WindowID: w.ID().String(),
		URL:      w.CurrentURL(),
		Title:    w.CurrentTitle(),
	})
}

func (h *Hub) OnCrashed(w *window.Controller) {
	h.Broadcast(Frame{Type: window.NotifyCrashed, WindowID: w.ID().String(), URL: w.CurrentURL()})
}

func (h *Hub) OnCreatedWindow(w *window.Controller, child *window.Controller) {
	h.Broadcast(Frame{
		Type:     window.NotifyCreatedWindow,
		WindowID: w.ID().String(),
		ChildID:  child.ID().String(),
		URL:      child.CurrentURL(),
	})
}

// OnBeforeUnload reports the page's answer and never vetoes it.
func (h *Hub) OnBeforeUnload(w *window.Controller, proceed bool) bool {
	h.Broadcast(Frame{Type: window.NotifyBeforeUnload, WindowID: w.ID().String(), Proceed: &proceed})
	return proceed
}

func (h *Hub) OnCancelUnload(w *window.Controller) {
	h.Broadcast(Frame{Type: window.NotifyCancelUnload, WindowID: w.ID().String()})
}

// Broadcast sends f to every client interested in its window.
func (h *Hub) Broadcast(f Frame) {
	f.Timestamp = h.now().Unix()
	data, err := sonic.Marshal(f)
	if err != nil {
		h.logger.Error("frame encoding failed", zap.String("type", f.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.wants(f.WindowID) {
			continue
		}
		h.enqueue(c, f.Type, data)
	}
}

// enqueue must be called with h.mu held.
func (h *Hub) enqueue(c *client, frameType string, data []byte) {
	select {
	case c.send <- data:
		h.metrics.RecordWSMessage("out", frameType)
	default:
		h.metrics.RecordWSMessage("dropped", frameType)
		h.logger.Warn("client too slow, frame dropped",
			zap.String("client_id", c.id),
			zap.String("type", frameType),
		)
	}
}

func (h *Hub) sendTo(c *client, f Frame) {
	f.Timestamp = h.now().Unix()
	data, err := sonic.Marshal(f)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; ok {
		h.enqueue(c, f.Type, data)
	}
}

func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.metrics.IncWSConnections()
	h.logger.Debug("client connected", zap.String("client_id", c.id))
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.mu.Unlock()

	h.metrics.DecWSConnections()
	h.logger.Debug("client disconnected", zap.String("client_id", c.id))
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// HandleConnection upgrades the request and serves the client until it
// disconnects.
func (h *Hub) HandleConnection(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := h.register(conn)
	go h.writePump(c)

	if windowID := ctx.Query("window_id"); windowID != "" && id.Valid(windowID) {
		c.subscribe(id.WindowID(windowID))
	}
	h.sendTo(c, Frame{Type: FrameSystem, ClientID: c.id, Message: "connected"})

	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.sendTo(c, Frame{Type: FrameError, Message: "malformed message"})
			continue
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "ping":
			h.sendTo(c, Frame{Type: FramePong})
		case "subscribe":
			if msg.WindowID != "" && !id.Valid(msg.WindowID) {
				h.sendTo(c, Frame{Type: FrameError, Message: "invalid window id"})
				continue
			}
			c.subscribe(id.WindowID(msg.WindowID))
			h.sendTo(c, Frame{Type: FrameSystem, WindowID: msg.WindowID, Message: "subscribed"})
		default:
			h.sendTo(c, Frame{Type: FrameError, Message: "unknown message type"})
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
