package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

const (
	// outboxSize bounds the per-session outbound queue. A slow peer fills
	// its own queue and starts losing frames instead of stalling broadcasts
	// to everyone else.
	outboxSize = 64

	writeTimeout = 10 * time.Second
)

// Session is one client connection, from accept to close.
//
// Two goroutines serve it: a read loop decoding frames in arrival order,
// and a writer draining the outbound queue. The username is immutable once
// the handshake succeeds; isAdmin is flipped by the command engine from
// other goroutines and is mutex-guarded against torn reads.
type Session struct {
	id   string // connection UUID for log correlation before a username exists
	srv  *Server
	conn net.Conn
	fr   *protocol.FrameReader

	mu       sync.Mutex
	state    model.SessionState
	username string
	isAdmin  bool

	outbox     chan protocol.Message
	quit       chan struct{} // closed once: writer drains the queue and closes the conn
	quitOnce   sync.Once
	writerDone chan struct{} // closed when the writer goroutine has exited

	// Intentional-disconnect coordination. The flag is set before any
	// notification goes out; notified is closed only after the peer and the
	// other sessions have been told, and the read loop's cleanup path waits
	// on it so the "lost connection" broadcast is suppressed without relying
	// on scheduling order.
	disconnecting atomic.Bool
	notified      chan struct{}
}

func newSession(srv *Server, conn net.Conn) *Session {
	return &Session{
		id:         uuid.NewString(),
		srv:        srv,
		conn:       conn,
		fr:         protocol.NewFrameReader(conn),
		state:      model.StateConnecting,
		outbox:     make(chan protocol.Message, outboxSize),
		quit:       make(chan struct{}),
		writerDone: make(chan struct{}),
		notified:   make(chan struct{}),
	}
}

// Username returns the session's username, "" before handshake success.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// IsAdmin reports whether the session may issue admin commands.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAdmin
}

// SetAdmin flips the session's admin flag. Only the command engine calls it.
func (s *Session) SetAdmin(admin bool) {
	s.mu.Lock()
	s.isAdmin = admin
	s.mu.Unlock()
}

// State returns the session's lifecycle state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st model.SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// RemoteAddr returns the peer address string.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Send enqueues a message for delivery. It never blocks: when the queue is
// full the frame is dropped and counted, so one slow peer cannot delay a
// broadcast to the rest.
func (s *Session) Send(msg protocol.Message) {
	select {
	case s.outbox <- msg:
	default:
		s.srv.metrics.DroppedWrites.Add(1)
		slog.Warn("outbound queue full, dropping frame", "conn", s.id, "op", msg.Op)
	}
}

func (s *Session) sendText(op protocol.Opcode, payload string) {
	s.Send(protocol.NewMessage(op, payload))
}

// closeWrite tells the writer to drain the queue and close the connection.
// Idempotent.
func (s *Session) closeWrite() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// run serves the session until its connection is fully shut down.
func (s *Session) run() {
	s.srv.metrics.TotalConnections.Add(1)
	s.srv.metrics.ActiveConnections.Add(1)
	slog.Debug("new connection", "conn", s.id, "remote", s.RemoteAddr())

	go s.writeLoop()
	s.readLoop()
	s.cleanup()
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	defer func() { _ = s.conn.Close() }()
	for {
		select {
		case msg := <-s.outbox:
			s.writeFrame(msg)
		case <-s.quit:
			// Drain whatever is already queued, then shut the conn.
			for {
				select {
				case msg := <-s.outbox:
					s.writeFrame(msg)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) writeFrame(msg protocol.Message) {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		slog.Warn("unencodable frame dropped", "conn", s.id, "op", msg.Op, "err", err)
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := s.conn.Write(data); err != nil {
		slog.Debug("write failed", "conn", s.id, "err", err)
	}
}

// readLoop processes frames strictly in arrival order until the transport
// fails or the session is shut down.
func (s *Session) readLoop() {
	for {
		msg, err := s.fr.Next()
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooShort) {
				s.sendText(protocol.OpClientError, "Bad command sent")
				if s.State() == model.StateConnecting {
					s.closeHandshakeFailure()
					return
				}
				continue
			}
			return // transport failure or peer close
		}
		if !s.handle(msg) {
			return
		}
	}
}

// handle dispatches one decoded frame. Returns false when the read loop
// should stop.
func (s *Session) handle(msg protocol.Message) bool {
	switch msg.Op {
	case protocol.OpConnectRequest:
		return s.handleConnect(msg.Payload)

	case protocol.OpSend:
		return s.handleChat(msg.Payload)

	case protocol.OpDisconnect:
		s.handleDisconnectNotice()
		return false

	case protocol.OpAdmin:
		return s.handleAdmin(msg.Payload)

	case protocol.OpServerError:
		// Logged only; the protocol requires no response.
		slog.Error("client reported server error", "conn", s.id, "user", s.Username(),
			"detail", protocol.Sanitize(msg.Text()))
		return true

	default:
		s.sendText(protocol.OpClientError, "Unknown command sent")
		if s.State() == model.StateConnecting {
			s.closeHandshakeFailure()
			return false
		}
		return true
	}
}

// handleConnect runs the handshake. Check order follows the protocol:
// password first, then username shape, then collision.
func (s *Session) handleConnect(payload []byte) bool {
	if s.State() != model.StateConnecting {
		s.sendText(protocol.OpClientError, "Already connected")
		return true
	}

	userField, passField, _ := protocol.SplitFields(payload)
	username := string(userField)

	if !s.srv.password.Verify(string(passField)) {
		return s.rejectHandshake("Incorrect password")
	}
	if err := model.ValidateUsername(username); err != nil {
		return s.rejectHandshake("Client sent bad username")
	}

	s.mu.Lock()
	s.username = username
	s.mu.Unlock()

	// Atomic claim: of two concurrent handshakes for one name, exactly one
	// registration succeeds.
	if err := s.srv.registry.Register(s); err != nil {
		s.mu.Lock()
		s.username = ""
		s.mu.Unlock()
		return s.rejectHandshake("Username has already been taken")
	}

	if admin, err := s.srv.store.IsAdmin(username); err != nil {
		slog.Warn("admin flag lookup failed", "user", username, "err", err)
	} else if admin {
		s.SetAdmin(true)
	}

	s.setState(model.StateConnected)
	s.sendText(protocol.OpConnected, "")
	s.srv.registry.BroadcastExcept(s, protocol.NewMessage(protocol.OpNotify,
		fmt.Sprintf("The user %q has connected to the server", username)))

	s.srv.metrics.SuccessfulAuths.Add(1)
	s.srv.audit(model.EventConnect, username, s.RemoteAddr())
	slog.Info("client connected", "conn", s.id, "user", username, "remote", s.RemoteAddr(),
		"admin", s.IsAdmin())
	return true
}

// rejectHandshake sends NCN with a reason and closes without ever entering
// the registry.
func (s *Session) rejectHandshake(reason string) bool {
	s.srv.metrics.FailedAuths.Add(1)
	slog.Info("handshake rejected", "conn", s.id, "remote", s.RemoteAddr(), "reason", reason)
	s.sendText(protocol.OpNotConnected, reason)
	s.closeHandshakeFailure()
	return false
}

// closeHandshakeFailure shuts down a never-registered session. The close is
// intentional, so the cleanup path must not broadcast a lost-connection
// notice.
func (s *Session) closeHandshakeFailure() {
	if s.disconnecting.CompareAndSwap(false, true) {
		s.setState(model.StateDisconnecting)
		s.closeWrite()
		close(s.notified)
	}
}

func (s *Session) handleChat(payload []byte) bool {
	if s.State() != model.StateConnected {
		s.sendText(protocol.OpClientError, "Not connected")
		s.closeHandshakeFailure()
		return false
	}
	username := s.Username()
	body := protocol.Sanitize(string(payload))
	s.srv.registry.BroadcastExcept(s, protocol.Message{
		Op:      protocol.OpForward,
		Payload: protocol.JoinFields(username, body),
	})
	s.srv.metrics.MessagesRelayed.Add(1)
	slog.Info("chat", "user", username, "message", body)
	return true
}

// handleDisconnectNotice handles the peer's polite disconnect.
func (s *Session) handleDisconnectNotice() {
	if s.State() != model.StateConnected {
		s.closeHandshakeFailure()
		return
	}
	s.Disconnect(fmt.Sprintf("%s has disconnected from the server", s.Username()), "")
}

func (s *Session) handleAdmin(payload []byte) bool {
	if s.State() != model.StateConnected {
		s.sendText(protocol.OpClientError, "Not connected")
		s.closeHandshakeFailure()
		return false
	}
	if !s.IsAdmin() {
		s.sendText(protocol.OpClientError, "You do not have admin permissions")
		return true
	}

	line := protocol.Sanitize(string(payload))
	slog.Info("admin command from client", "user", s.Username(), "command", line)
	output, err := s.srv.RunCommand(line, s.Username())
	if err != nil {
		s.sendText(protocol.OpClientError, "Bad command input")
		return true
	}
	if output != "" {
		s.sendText(protocol.OpResponse, output)
	}
	return true
}

// Disconnect starts an intentional disconnect: notify the other sessions
// (when toOthers is non-empty), send the peer a disconnect frame carrying
// toSelf, then let the writer flush and close. Safe to call from any
// goroutine; only the first call acts.
func (s *Session) Disconnect(toOthers, toSelf string) {
	if !s.disconnecting.CompareAndSwap(false, true) {
		return
	}
	s.setState(model.StateDisconnecting)
	if toOthers != "" {
		s.srv.registry.BroadcastExcept(s, protocol.NewMessage(protocol.OpNotify, toOthers))
		slog.Info(toOthers)
	}
	s.sendText(protocol.OpDisconnect, toSelf)
	s.closeWrite()
	close(s.notified)
}

// cleanup runs after the read loop exits: decide whether the close was
// intentional, notify on unexpected loss, and take the session out of the
// registry once the connection is fully shut down.
func (s *Session) cleanup() {
	username := s.Username()

	if s.disconnecting.Load() {
		// Intentional: wait until the initiator has finished notifying
		// before tearing anything down.
		<-s.notified
		if username != "" {
			s.srv.audit(model.EventDisconnect, username, "intentional")
		}
	} else if s.State() == model.StateConnected {
		notice := fmt.Sprintf("%q has lost connection to the server", username)
		s.srv.registry.BroadcastExcept(s, protocol.NewMessage(protocol.OpNotify, notice))
		slog.Error("lost connection", "conn", s.id, "user", username)
		s.srv.audit(model.EventDisconnect, username, "lost connection")
	}

	s.closeWrite()
	<-s.writerDone
	s.srv.registry.Unregister(s)
	s.setState(model.StateClosed)

	s.srv.metrics.ActiveConnections.Add(-1)
	s.srv.metrics.TotalDisconnects.Add(1)
	slog.Debug("connection closed", "conn", s.id, "user", username)
}
