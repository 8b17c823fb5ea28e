package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

var errSessionClosed = errors.New("chat: session closed")

// Frame is the wire envelope in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Server upgrades HTTP requests to chat sessions.
type Server struct {
	handler  *Handler
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewServer creates a Server accepting browser origins listed in
// allowedOrigins; "*" accepts any origin. Requests without an Origin header
// come from non-browser clients and are always accepted.
func NewServer(h *Handler, allowedOrigins []string) *Server {
	s := &Server{
		handler:  h,
		logger:   slog.Default().With("component", "chat"),
		sessions: make(map[*Session]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return s
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("websocket upgrade failed", "origin", r.Header.Get("Origin"), "error", err)
		return
	}
	sess := newSession(conn, s.handler, s.logger)

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("chat session opened", "remote", r.RemoteAddr)

	sess.run()

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.logger.Info("chat session closed", "remote", r.RemoteAddr)
}

// Close ends every open session, cancelling their active turns.
func (s *Server) Close() {
	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()
	for _, sess := range open {
		sess.close()
	}
}

// Session is one websocket connection. It runs at most one turn at a time;
// all writes go through a single writer goroutine.
type Session struct {
	conn    *websocket.Conn
	handler *Handler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	turnCancel context.CancelFunc
	turns      sync.WaitGroup
}

func newSession(conn *websocket.Conn, h *Handler, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		conn:    conn,
		handler: h,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		send:    make(chan Frame, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Emit queues an event for the writer. It blocks while the buffer is full
// and fails once the session is closed.
func (s *Session) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	select {
	case s.send <- Frame{Event: event, Data: raw}:
		return nil
	case <-s.done:
		return errSessionClosed
	}
}

func (s *Session) run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()
	s.readLoop()
	s.close()
	s.turns.Wait()
	<-writerDone
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		select {
		case <-s.done:
			return
		default:
		}

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.Emit(EventError, ErrorPayload{Message: "malformed frame"})
			continue
		}
		s.dispatch(f)
	}
}

func (s *Session) dispatch(f Frame) {
	switch f.Event {
	case EventMessage:
		var req MessageRequest
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &req); err != nil {
				s.Emit(EventError, ErrorPayload{Message: "malformed chat:message payload"})
				return
			}
		}
		s.startTurn(req)
	case EventStop:
		s.mu.Lock()
		if s.turnCancel != nil {
			s.turnCancel()
		}
		s.mu.Unlock()
	default:
		s.Emit(EventError, ErrorPayload{Message: "unknown event " + f.Event})
	}
}

func (s *Session) startTurn(req MessageRequest) {
	s.mu.Lock()
	if s.turnCancel != nil {
		s.mu.Unlock()
		s.Emit(EventError, ErrorPayload{Message: "a response is already in progress", Reason: ReasonBusy})
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.turnCancel = cancel
	s.turns.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.turns.Done()
		defer func() {
			s.mu.Lock()
			s.turnCancel = nil
			s.mu.Unlock()
			cancel()
		}()
		s.handler.HandleMessage(ctx, s, req)
	}()
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	// Closing the connection unblocks the read loop.
	defer s.conn.Close()

	for {
		select {
		case f := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.close()
				return
			}
		case <-s.done:
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
