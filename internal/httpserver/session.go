// Package httpserver exposes an MCP server over a session-scoped streamable
// HTTP transport: POST for JSON-RPC messages, GET for an SSE notification
// stream, DELETE for session termination.
package httpserver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// notificationBuffer is the per-session queue of server-to-client
// notifications awaiting an SSE reader.
const notificationBuffer = 64

// Session is one client's connection state. The identifier is generated from
// a cryptographic random source, so it cannot be guessed or forged. A session
// moves from uninitialized to active when the MCP initialize handshake runs,
// and to closed exactly once.
type Session struct {
	id            string
	createdAt     time.Time
	notifications chan mcp.JSONRPCNotification
	initialized   atomic.Bool
	closeOnce     sync.Once
	done          chan struct{}
}

// NewSession creates an uninitialized session with a fresh random identifier.
func NewSession() *Session {
	return &Session{
		id:            uuid.NewString(),
		createdAt:     time.Now(),
		notifications: make(chan mcp.JSONRPCNotification, notificationBuffer),
		done:          make(chan struct{}),
	}
}

// SessionID returns the session identifier.
func (s *Session) SessionID() string { return s.id }

// Initialize marks the session active. Called by the MCP dispatcher when the
// initialize handshake completes.
func (s *Session) Initialize() { s.initialized.Store(true) }

// Initialized reports whether the initialize handshake has completed.
func (s *Session) Initialized() bool { return s.initialized.Load() }

// NotificationChannel returns the send side of the notification queue, as the
// MCP dispatcher expects.
func (s *Session) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return s.notifications
}

// Notifications returns the receive side of the notification queue, consumed
// by the SSE stream handler.
func (s *Session) Notifications() <-chan mcp.JSONRPCNotification {
	return s.notifications
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Close marks the session closed. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed when the session has been terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
