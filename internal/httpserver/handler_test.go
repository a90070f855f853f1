package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return &log.Logger{Level: log.PanicLevel}
}

func newTestHandler(t *testing.T) (*Handler, *Registry) {
	t.Helper()
	mcpSrv := mcpserver.NewMCPServer("test-api", "1.0.0", mcpserver.WithToolCapabilities(true))
	registry := NewRegistry(mcpSrv, testLogger())
	return NewHandler(mcpSrv, registry, "test-api", testLogger()), registry
}

const initializeBody = `{
  "jsonrpc": "2.0",
  "id": 1,
  "method": "initialize",
  "params": {
    "protocolVersion": "2024-11-05",
    "capabilities": {},
    "clientInfo": {"name": "test-client", "version": "1.0.0"}
  }
}`

func initialize(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/mcp", "application/json", strings.NewReader(initializeBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionID := resp.Header.Get(sessionHeader)
	require.NotEmpty(t, sessionID, "initialize must return a session identifier")
	return sessionID
}

func postWithSession(t *testing.T, ts *httptest.Server, sessionID, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestInitializeCreatesSession(t *testing.T) {
	handler, registry := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	sessionID := initialize(t, ts)
	assert.Equal(t, 1, registry.Len())

	sess, ok := registry.Get(sessionID)
	require.True(t, ok)
	assert.True(t, sess.Initialized())
}

func TestSessionsAreIndependent(t *testing.T) {
	handler, registry := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	first := initialize(t, ts)
	second := initialize(t, ts)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, registry.Len())

	// Terminating one leaves the other alive.
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	req.Header.Set(sessionHeader, first)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, registry.Len())

	listResp := postWithSession(t, ts, second, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusOK, listResp.StatusCode)
}

func TestPostRoutedToSession(t *testing.T) {
	handler, _ := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	sessionID := initialize(t, ts)
	resp := postWithSession(t, ts, sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rpcResp struct {
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	assert.Contains(t, rpcResp.Result, "tools")
}

func TestPostWithoutSessionRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	resp := postWithSession(t, ts, "", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp rpcErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, mcp.INVALID_REQUEST, errResp.Error.Code)
}

func TestPostUnknownSessionRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	resp := postWithSession(t, ts, "no-such-session", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp rpcErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, mcp.INVALID_REQUEST, errResp.Error.Code)
	assert.Contains(t, errResp.Error.Message, "session not found")
}

func TestDeleteTerminatesSession(t *testing.T) {
	handler, registry := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	sessionID := initialize(t, ts)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	req.Header.Set(sessionHeader, sessionID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Session terminated", body["message"])
	assert.Equal(t, 0, registry.Len())

	// The identifier is gone for good.
	again := postWithSession(t, ts, sessionID, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	defer again.Body.Close()
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestDeleteUnknownSession(t *testing.T) {
	handler, _ := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	req.Header.Set(sessionHeader, "nope")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSSEStreamDeliversNotifications(t *testing.T) {
	handler, registry := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	sessionID := initialize(t, ts)
	sess, ok := registry.Get(sessionID)
	require.True(t, ok)

	// Queue a notification before the stream opens; the buffer holds it.
	sess.NotificationChannel() <- mcp.JSONRPCNotification{
		JSONRPC: "2.0",
		Notification: mcp.Notification{
			Method: "notifications/message",
		},
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/mcp", nil)
	req.Header.Set(sessionHeader, sessionID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	scanner := bufio.NewScanner(resp.Body)
	var dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			dataLine = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, dataLine, "expected an SSE data frame")
	assert.Contains(t, dataLine, "notifications/message")
}

func TestSSEWithoutSessionRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/mcp")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAlwaysHealthy(t *testing.T) {
	handler, _ := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test-api", body["service"])
	assert.Equal(t, "streamable-http", body["transport"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestMalformedJSONRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	ts := httptest.NewServer(handler.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/mcp", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
