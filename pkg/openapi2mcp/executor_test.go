package openapi2mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

func bindOperation(t *testing.T, op OpenAPIOperation) *ToolBinding {
	t.Helper()
	buckets, err := ClassifyParameters(op, nil)
	if err != nil {
		t.Fatal(err)
	}
	schema := BuildInputSchema(buckets)
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		t.Fatal(err)
	}
	return &ToolBinding{
		Op:          op,
		Name:        SanitizeToolName(op.OperationID),
		Buckets:     buckets,
		InputSchema: schema,
		SchemaJSON:  schemaJSON,
	}
}

func TestExecute_PathSubstitutionAndBody(t *testing.T) {
	var gotPath, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg-1"}`))
	}))
	defer upstream.Close()

	op := OpenAPIOperation{
		OperationID: "sendMessage",
		Path:        "/v3/{domain}/messages",
		Method:      "post",
		Parameters: openapi3.Parameters{
			param("domain", "path", true),
		},
		RequestBody: jsonBody(true, &openapi3.Schema{
			Type: "object",
			Properties: openapi3.Schemas{
				"to":      strSchema(),
				"subject": strSchema(),
			},
			Required: []string{"to"},
		}),
	}
	binding := bindOperation(t, op)
	exec := NewExecutor(upstream.URL, AuthConfig{})

	result, err := exec.Execute(context.Background(), binding, map[string]any{
		"domain":  "example.org",
		"to":      "a@b.c",
		"subject": "hi",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error: %+v", result)
	}
	if gotPath != "/v3/example.org/messages" {
		t.Fatalf("path parameter not substituted, got %q", gotPath)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(gotBody), &body); err != nil {
		t.Fatalf("upstream body is not JSON: %q", gotBody)
	}
	if body["to"] != "a@b.c" || body["subject"] != "hi" {
		t.Fatalf("body fields not recombined: %v", body)
	}
	if _, leaked := body["domain"]; leaked {
		t.Fatalf("path parameter leaked into body: %v", body)
	}
}

func TestExecute_PathValuePercentEncoded(t *testing.T) {
	var gotURI string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.RequestURI
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	op := OpenAPIOperation{
		OperationID: "getItem",
		Path:        "/items/{id}",
		Method:      "get",
		Parameters:  openapi3.Parameters{param("id", "path", true)},
	}
	binding := bindOperation(t, op)
	exec := NewExecutor(upstream.URL, AuthConfig{})

	if _, err := exec.Execute(context.Background(), binding, map[string]any{"id": "a/b c"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gotURI, "a%2Fb") {
		t.Fatalf("path value not percent-encoded: %q", gotURI)
	}
}

func TestExecute_QueryArraysRepeatKeys(t *testing.T) {
	var gotQuery map[string][]string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	arrayParam := &openapi3.ParameterRef{Value: &openapi3.Parameter{
		Name: "tags",
		In:   "query",
		Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:  "array",
			Items: strSchema(),
		}},
	}}
	op := OpenAPIOperation{
		OperationID: "list",
		Path:        "/items",
		Method:      "get",
		Parameters:  openapi3.Parameters{arrayParam, param("limit", "query", false)},
	}
	binding := bindOperation(t, op)
	exec := NewExecutor(upstream.URL, AuthConfig{})

	_, err := exec.Execute(context.Background(), binding, map[string]any{
		"tags":  []any{"a", "b"},
		"limit": float64(5),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := gotQuery["tags"]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("array query values must repeat the key, got %v", gotQuery)
	}
	if got := gotQuery["limit"]; len(got) != 1 || got[0] != "5" {
		t.Fatalf("scalar query value mangled: %v", gotQuery)
	}
}

func TestExecute_HeaderParamsAndAuth(t *testing.T) {
	var gotHeader http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	op := OpenAPIOperation{
		OperationID: "ping",
		Path:        "/ping",
		Method:      "get",
		Parameters:  openapi3.Parameters{param("X-Trace-Id", "header", false)},
	}
	binding := bindOperation(t, op)
	exec := NewExecutor(upstream.URL, AuthConfig{BearerToken: "sekrit"})

	if _, err := exec.Execute(context.Background(), binding, map[string]any{"X-Trace-Id": "t-1"}); err != nil {
		t.Fatal(err)
	}
	if gotHeader.Get("X-Trace-Id") != "t-1" {
		t.Fatalf("header parameter not sent: %v", gotHeader)
	}
	if gotHeader.Get("Authorization") != "Bearer sekrit" {
		t.Fatalf("bearer credential not injected: %q", gotHeader.Get("Authorization"))
	}
}

func TestExecute_APIKeyHeader(t *testing.T) {
	var gotHeader http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	op := OpenAPIOperation{OperationID: "ping", Path: "/ping", Method: "get"}
	binding := bindOperation(t, op)
	exec := NewExecutor(upstream.URL, AuthConfig{APIKey: "k-123", APIKeyHeader: "Fastly-Key"})

	if _, err := exec.Execute(context.Background(), binding, map[string]any{}); err != nil {
		t.Fatal(err)
	}
	if gotHeader.Get("Fastly-Key") != "k-123" {
		t.Fatalf("api key not injected into configured header: %v", gotHeader)
	}
}

func TestExecute_Non2xxIsToolError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"no such item"}`))
	}))
	defer upstream.Close()

	op := OpenAPIOperation{OperationID: "getItem", Path: "/items/1", Method: "get"}
	binding := bindOperation(t, op)
	exec := NewExecutor(upstream.URL, AuthConfig{})

	result, err := exec.Execute(context.Background(), binding, map[string]any{})
	if err != nil {
		t.Fatalf("non-2xx must not be a transport error: %v", err)
	}
	if !result.IsError {
		t.Fatal("non-2xx upstream response must be flagged as a tool error")
	}
}

func TestExecute_TransportFailureIsError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // connection refused from here on

	op := OpenAPIOperation{OperationID: "ping", Path: "/ping", Method: "get"}
	binding := bindOperation(t, op)
	exec := NewExecutor(upstream.URL, AuthConfig{})

	_, err := exec.Execute(context.Background(), binding, map[string]any{})
	if err == nil {
		t.Fatal("transport failure must surface as an error, not a tool result")
	}
}

func TestExecute_OpaqueBodyPassthrough(t *testing.T) {
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	op := OpenAPIOperation{
		OperationID: "bulk",
		Path:        "/bulk",
		Method:      "post",
		RequestBody: jsonBody(true, &openapi3.Schema{Type: "array", Items: strSchema()}),
	}
	binding := bindOperation(t, op)
	exec := NewExecutor(upstream.URL, AuthConfig{})

	_, err := exec.Execute(context.Background(), binding, map[string]any{
		"body": []any{"a", "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotBody != `["a","b"]` {
		t.Fatalf("opaque body not passed through, got %q", gotBody)
	}
}
