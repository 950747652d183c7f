package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
)

// ErrNotConnected is returned when emitting on a closed socket.
var ErrNotConnected = errors.New("socket not connected")

// Socket is the client side of the broadcast channel. It keeps at most one
// connection and one entryCreated handler.
type Socket struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	handler func(models.Entry)
	done    chan struct{}
}

// NewSocket creates a socket for the server at baseURL, e.g. http://localhost:3001.
func NewSocket(baseURL string) (*Socket, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return &Socket{url: u.String(), dialer: websocket.DefaultDialer}, nil
}

// Connect dials the server unless already connected.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	s.conn = conn
	s.done = make(chan struct{})
	go s.readLoop(conn, s.done)

	logger.Log.Debugw("socket connected", "url", s.url)
	return nil
}

// Connected reports whether a connection is open.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Join announces the user to the server.
func (s *Socket) Join(userID, userName string) error {
	data, err := json.Marshal(models.JoinPayload{UserID: userID, UserName: userName})
	if err != nil {
		return err
	}
	frame, err := json.Marshal(models.Event{Event: models.EventJoin, Data: data})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// OnEntryCreated replaces the entryCreated handler.
func (s *Socket) OnEntryCreated(fn func(models.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// OffEntryCreated removes the entryCreated handler.
func (s *Socket) OffEntryCreated() {
	s.OnEntryCreated(nil)
}

// Close disconnects. It is a no-op when not connected.
func (s *Socket) Close() error {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.conn, s.done = nil, nil
	if conn == nil {
		s.mu.Unlock()
		return nil
	}
	// Writes are serialised by s.mu; Join holds it too.
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.mu.Unlock()

	err := conn.Close()
	<-done
	return err
}

func (s *Socket) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.conn, s.done = nil, nil
				logger.Log.Warnw("socket disconnected", "error", err)
			}
			s.mu.Unlock()
			return
		}

		var ev models.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			logger.Log.Debugw("ignoring malformed frame", "error", err)
			continue
		}
		if ev.Event != models.EventEntryCreated {
			continue
		}

		var entry models.Entry
		if err := json.Unmarshal(ev.Data, &entry); err != nil {
			logger.Log.Debugw("ignoring malformed entry", "error", err)
			continue
		}

		s.mu.Lock()
		fn := s.handler
		s.mu.Unlock()
		if fn != nil {
			fn(entry)
		}
	}
}
