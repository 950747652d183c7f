package broadcast

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// ErrHubClosed is returned by ServeHTTP after Close.
var ErrHubClosed = errors.New("broadcast hub closed")

// Recorder observes hub activity.
type Recorder interface {
	ClientConnected()
	ClientDisconnected()
	EventDropped()
}

// Option configures a Hub.
type Option func(*Hub)

// WithAllowedOrigins restricts cross-origin upgrades to the given origins. "*" allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Hub) { h.allowedOrigins = append(h.allowedOrigins, origins...) }
}

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(h *Hub) { h.recorder = r }
}

// Hub fans events out to every connected websocket client.
// Delivery is best effort: a client whose send buffer is full misses the event.
type Hub struct {
	upgrader       websocket.Upgrader
	allowedOrigins []string
	recorder       Recorder

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{clients: make(map[*client]struct{})}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Publish sends event to all clients without blocking.
func (h *Hub) Publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorw("failed to marshal event payload", "event", event, "error", err)
		return
	}
	msg, err := json.Marshal(models.Event{Event: event, Data: data})
	if err != nil {
		logger.Log.Errorw("failed to marshal event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logger.Log.Warnw("dropping event for slow client", "event", event, "remote", c.remoteAddr())
			if h.recorder != nil {
				h.recorder.EventDropped()
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logger.Log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	if !h.register(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// Close disconnects every client. Later upgrades are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		h.drop(c)
	}
	logger.Log.Infow("broadcast hub closed")
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.recorder != nil {
		h.recorder.ClientConnected()
	}
	logger.Log.Infow("client connected", "remote", c.remoteAddr(), "clients", len(h.clients))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		h.drop(c)
		logger.Log.Infow("client disconnected", "remote", c.remoteAddr(), "clients", len(h.clients))
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	if h.recorder != nil {
		h.recorder.ClientDisconnected()
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (c *client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warnw("websocket read failed", "remote", c.remoteAddr(), "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg []byte) {
	var ev models.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		logger.Log.Debugw("ignoring malformed frame", "remote", c.remoteAddr(), "error", err)
		return
	}

	switch ev.Event {
	case models.EventJoin:
		var join models.JoinPayload
		if err := json.Unmarshal(ev.Data, &join); err != nil {
			logger.Log.Debugw("ignoring malformed join", "remote", c.remoteAddr(), "error", err)
			return
		}
		logger.Log.Infow("user joined", "userId", join.UserID, "userName", join.UserName)
	default:
		logger.Log.Debugw("ignoring unknown event", "event", ev.Event)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
