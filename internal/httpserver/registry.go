package httpserver

import (
	"context"
	"fmt"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"
)

// Registry is the sole owner of the session table. Every lookup, insert, and
// delete goes through its mutex, so the table is never observed mid-mutation.
// Identifiers are random and never reused.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	accepting bool

	mcp    *mcpserver.MCPServer
	logger *log.Logger
}

// NewRegistry creates an empty registry bound to the given MCP server.
func NewRegistry(mcpServer *mcpserver.MCPServer, logger *log.Logger) *Registry {
	return &Registry{
		sessions:  map[string]*Session{},
		accepting: true,
		mcp:       mcpServer,
		logger:    logger,
	}
}

// Create makes a new session, registers it with the MCP server, and stores it.
// Fails once the registry has stopped accepting sessions (during shutdown).
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	sess := NewSession()

	r.mu.Lock()
	if !r.accepting {
		r.mu.Unlock()
		return nil, fmt.Errorf("server is shutting down")
	}
	r.sessions[sess.SessionID()] = sess
	r.mu.Unlock()

	if err := r.mcp.RegisterSession(ctx, sess); err != nil {
		r.mu.Lock()
		delete(r.sessions, sess.SessionID())
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to register session: %w", err)
	}

	r.logger.Debug().Str("session", sess.SessionID()).Msg("session created")
	return sess, nil
}

// Get looks up a session by identifier.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Remove closes the session, unregisters it from the MCP server, and drops it
// from the table. Returns false when the identifier is unknown.
func (r *Registry) Remove(ctx context.Context, id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	sess.Close()
	r.mcp.UnregisterSession(ctx, id)
	r.logger.Debug().Str("session", id).Msg("session removed")
	return true
}

// CloseAll stops accepting new sessions and removes every existing one.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	r.accepting = false
	remaining := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		remaining = append(remaining, sess)
	}
	r.sessions = map[string]*Session{}
	r.mu.Unlock()

	for _, sess := range remaining {
		sess.Close()
		r.mcp.UnregisterSession(ctx, sess.SessionID())
	}
	if len(remaining) > 0 {
		r.logger.Info().Int("count", len(remaining)).Msg("closed all sessions")
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
