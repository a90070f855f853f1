package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"
)

// sessionHeader carries the session identifier on every request after
// initialization.
const sessionHeader = "Mcp-Session-Id"

// maxBodySize bounds a single POSTed JSON-RPC message.
const maxBodySize = 4 << 20

// keepAliveInterval is how often an idle SSE stream emits a comment so
// intermediaries don't drop the connection.
const keepAliveInterval = 15 * time.Second

// Handler routes the streamable HTTP endpoint: POST carries client-to-server
// JSON-RPC, GET opens the server-to-client SSE stream, DELETE terminates the
// session. A health probe lives next to it.
type Handler struct {
	mcp      *mcpserver.MCPServer
	registry *Registry
	logger   *log.Logger
	service  string
}

// NewHandler creates the endpoint handler.
func NewHandler(mcpServer *mcpserver.MCPServer, registry *Registry, service string, logger *log.Logger) *Handler {
	return &Handler{
		mcp:      mcpServer,
		registry: registry,
		logger:   logger,
		service:  service,
	}
}

// Routes returns the HTTP mux for the transport.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", h.handleMCP)
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

func (h *Handler) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleSSE(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		writeRPCError(w, http.StatusMethodNotAllowed, nil, mcp.INVALID_REQUEST, "method not allowed")
	}
}

// rpcEnvelope is the minimal shape peeked from an incoming message to decide
// routing before the dispatcher sees it.
type rpcEnvelope struct {
	ID     any    `json:"id"`
	Method string `json:"method"`
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, mcp.PARSE_ERROR, "failed to read request body")
		return
	}
	var envelope rpcEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, mcp.PARSE_ERROR, "invalid JSON-RPC message")
		return
	}

	sessionID := r.Header.Get(sessionHeader)

	// An initialize request without a session header opens a new session.
	// The fresh identifier goes back to the client in the response header.
	if envelope.Method == "initialize" && sessionID == "" {
		sess, err := h.registry.Create(r.Context())
		if err != nil {
			writeRPCError(w, http.StatusServiceUnavailable, envelope.ID, mcp.INTERNAL_ERROR, err.Error())
			return
		}
		ctx := h.mcp.WithContext(r.Context(), sess)
		response := h.mcp.HandleMessage(ctx, body)
		w.Header().Set(sessionHeader, sess.SessionID())
		h.logger.Info().Str("session", sess.SessionID()).Msg("session initialized")
		writeJSON(w, http.StatusOK, response)
		return
	}

	if sessionID == "" {
		writeRPCError(w, http.StatusBadRequest, envelope.ID, mcp.INVALID_REQUEST, "Mcp-Session-Id header is required")
		return
	}
	sess, ok := h.registry.Get(sessionID)
	if !ok {
		writeRPCError(w, http.StatusNotFound, envelope.ID, mcp.INVALID_REQUEST, "session not found")
		return
	}

	ctx := h.mcp.WithContext(r.Context(), sess)
	response := h.mcp.HandleMessage(ctx, body)
	if response == nil {
		// Notifications have no response body.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeRPCError(w, http.StatusBadRequest, nil, mcp.INVALID_REQUEST, "Mcp-Session-Id header is required")
		return
	}
	sess, ok := h.registry.Get(sessionID)
	if !ok {
		writeRPCError(w, http.StatusNotFound, nil, mcp.INVALID_REQUEST, "session not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeRPCError(w, http.StatusInternalServerError, nil, mcp.INTERNAL_ERROR, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug().Str("session", sessionID).Msg("SSE stream opened")
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Transport reported the connection gone; the session dies with it.
			h.registry.Remove(context.Background(), sessionID)
			return
		case <-sess.Done():
			return
		case notification := <-sess.Notifications():
			data, err := json.Marshal(notification)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
				h.registry.Remove(r.Context(), sessionID)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				h.registry.Remove(r.Context(), sessionID)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeRPCError(w, http.StatusBadRequest, nil, mcp.INVALID_REQUEST, "Mcp-Session-Id header is required")
		return
	}
	if !h.registry.Remove(r.Context(), sessionID) {
		writeRPCError(w, http.StatusNotFound, nil, mcp.INVALID_REQUEST, "session not found")
		return
	}
	h.logger.Info().Str("session", sessionID).Msg("session terminated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session terminated"})
}

// handleHealth is a liveness probe: as long as the process answers, it
// reports healthy.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   h.service,
		"transport": "streamable-http",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcErrorResponse struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      any      `json:"id"`
	Error   rpcError `json:"error"`
}

func writeRPCError(w http.ResponseWriter, status int, id any, code int, message string) {
	writeJSON(w, status, rpcErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   rpcError{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
