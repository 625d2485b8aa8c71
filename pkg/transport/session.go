package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fleetlink/fleetlink/pkg/log"
)

// Frame is the named-event envelope carried on the wire. Every message in
// either direction is one JSON frame.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Session owns one physical websocket connection. A session is single-use:
// it dials once, delivers inbound frames to registered handlers until the
// connection drops, and is then discarded. The connection manager creates a
// fresh session for every connect attempt.
type Session struct {
	url    string
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu           sync.Mutex
	ws           *websocket.Conn
	handlers     map[string]func(json.RawMessage)
	onConnect    func()
	onDisconnect func(error)
	closed       bool

	// writeMu serializes writers; gorilla/websocket allows at most one
	// concurrent writer per connection.
	writeMu sync.Mutex

	dcOnce sync.Once
}

// NewSession creates a session for the given websocket URL. Callbacks and
// handlers must be registered before Connect.
func NewSession(url string) *Session {
	return &Session{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   log.WithComponent("transport"),
		handlers: make(map[string]func(json.RawMessage)),
	}
}

// OnConnect registers the callback fired after a successful dial.
func (s *Session) OnConnect(fn func()) {
	s.mu.Lock()
	s.onConnect = fn
	s.mu.Unlock()
}

// OnDisconnect registers the callback fired exactly once when the
// connection drops, with the read error that ended it.
func (s *Session) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

// Handle registers a handler for a named inbound event. Unhandled events
// are logged and dropped.
func (s *Session) Handle(event string, fn func(json.RawMessage)) {
	s.mu.Lock()
	s.handlers[event] = fn
	s.mu.Unlock()
}

// Connect dials the endpoint. On success the read loop starts and the
// OnConnect callback fires before Connect returns.
func (s *Session) Connect(ctx context.Context) error {
	ws, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ws.Close()
		return fmt.Errorf("session closed during dial")
	}
	s.ws = ws
	connected := s.onConnect
	s.mu.Unlock()

	go s.readLoop(ws)

	if connected != nil {
		connected()
	}
	return nil
}

// Emit sends one named-event frame. An error means the frame was not
// handed to the transport; the caller decides whether to cache the payload.
func (s *Session) Emit(event string, payload any) error {
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("emit %s: not connected", event)
	}

	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("emit %s: %w", event, err)
		}
		data = b
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := ws.WriteJSON(Frame{Event: event, Data: data}); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Detach removes all callbacks and handlers. The owner calls this before
// discarding a session so a still-draining read loop cannot fire stale
// events into a replacement session's state machine.
func (s *Session) Detach() {
	s.mu.Lock()
	s.onConnect = nil
	s.onDisconnect = nil
	s.handlers = make(map[string]func(json.RawMessage))
	s.mu.Unlock()
}

// Close tears down the physical connection. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	ws := s.ws
	s.ws = nil
	s.mu.Unlock()
	if ws != nil {
		return ws.Close()
	}
	return nil
}

func (s *Session) readLoop(ws *websocket.Conn) {
	for {
		var frame Frame
		if err := ws.ReadJSON(&frame); err != nil {
			s.fireDisconnect(err)
			return
		}
		s.mu.Lock()
		handler := s.handlers[frame.Event]
		s.mu.Unlock()
		if handler == nil {
			s.logger.Debug().Str("event", frame.Event).Msg("unhandled inbound event")
			continue
		}
		handler(frame.Data)
	}
}

func (s *Session) fireDisconnect(err error) {
	s.dcOnce.Do(func() {
		s.mu.Lock()
		fn := s.onDisconnect
		s.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	})
}
