// executor.go
package openapi2mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/phuslu/log"
)

// AuthConfig carries the single upstream credential, loaded once at startup.
// At most one of the three mechanisms is injected per request. The values are
// never logged.
type AuthConfig struct {
	BearerToken  string
	BasicAuth    string // user:pass
	APIKey       string
	APIKeyHeader string
}

// Executor turns validated tool arguments into a single upstream HTTP request
// and maps the outcome onto a tool result. There are no retries: the upstream
// response, whatever it is, is the answer.
type Executor struct {
	BaseURL string
	Auth    AuthConfig
	Client  *http.Client
	Logger  *log.Logger
}

// NewExecutor creates an executor for the given upstream base URL.
func NewExecutor(baseURL string, auth AuthConfig) *Executor {
	return &Executor{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Auth:    auth,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Logger:  &log.DefaultLogger,
	}
}

// Execute performs the upstream call for one tool invocation.
// A 2xx upstream response becomes a successful tool result. A non-2xx response
// becomes a tool result flagged as an error, so the model can read the status
// and body and adjust. Only a transport-level failure (connection refused,
// timeout, DNS) is returned as an error.
func (e *Executor) Execute(ctx context.Context, b *ToolBinding, args map[string]any) (*mcp.CallToolResult, error) {
	fullURL, err := e.buildURL(b, args)
	if err != nil {
		return nil, err
	}
	body, err := buildBody(b, args)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(b.Op.Method)
	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", b.Name, err)
	}
	if len(body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for _, p := range b.Buckets.Header {
		if val, ok := args[p.Name]; ok {
			httpReq.Header.Set(p.WireName, fmt.Sprintf("%v", val))
		}
	}
	e.injectAuth(httpReq)

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if e.Logger != nil {
		e.Logger.Debug().
			Str("tool", b.Name).
			Str("method", method).
			Str("path", b.Op.Path).
			Int("status", resp.StatusCode).
			Msg("upstream call completed")
	}

	contentType := resp.Header.Get("Content-Type")
	isJSON := strings.HasPrefix(contentType, "application/json")
	isText := strings.HasPrefix(contentType, "text/")
	isBinary := !isJSON && !isText && len(respBody) > 0

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorResult(b, resp, respBody, isBinary, contentType), nil
	}

	if isBinary {
		return binaryResult(b, resp, respBody, contentType), nil
	}
	respText := fmt.Sprintf("HTTP %s %s\nStatus: %d\nResponse:\n%s", method, fullURL, resp.StatusCode, string(respBody))
	return mcp.NewToolResultText(respText), nil
}

// buildURL substitutes path parameters (percent-encoded) and appends the
// query string. Array-valued query arguments are sent as repeated keys.
func (e *Executor) buildURL(b *ToolBinding, args map[string]any) (string, error) {
	path := b.Op.Path
	for _, p := range b.Buckets.Path {
		val, ok := args[p.Name]
		if !ok {
			return "", fmt.Errorf("missing path parameter %q", p.Name)
		}
		path = strings.ReplaceAll(path, "{"+p.WireName+"}", url.PathEscape(fmt.Sprintf("%v", val)))
	}

	query := url.Values{}
	for _, p := range b.Buckets.Query {
		val, ok := args[p.Name]
		if !ok {
			continue
		}
		if items, ok := val.([]any); ok {
			for _, item := range items {
				query.Add(p.WireName, fmt.Sprintf("%v", item))
			}
			continue
		}
		query.Set(p.WireName, fmt.Sprintf("%v", val))
	}

	fullURL := e.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	return fullURL, nil
}

// buildBody recombines the expanded body arguments into the upstream JSON
// body, or passes an opaque body argument through as-is.
func buildBody(b *ToolBinding, args map[string]any) ([]byte, error) {
	if len(b.Buckets.Body) == 0 {
		return nil, nil
	}
	if b.Buckets.BodyOpaque {
		val, ok := args[b.Buckets.Body[0].Name]
		if !ok || val == nil {
			return nil, nil
		}
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
	bodyMap := map[string]any{}
	for _, f := range b.Buckets.Body {
		if val, ok := args[f.Name]; ok {
			bodyMap[f.Source] = val
		}
	}
	if len(bodyMap) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(bodyMap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return data, nil
}

// injectAuth sets exactly one credential on the outgoing request. The secret
// values themselves must never reach a log line.
func (e *Executor) injectAuth(req *http.Request) {
	switch {
	case e.Auth.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+e.Auth.BearerToken)
	case e.Auth.BasicAuth != "":
		encoded := base64.StdEncoding.EncodeToString([]byte(e.Auth.BasicAuth))
		req.Header.Set("Authorization", "Basic "+encoded)
	case e.Auth.APIKey != "":
		header := e.Auth.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, e.Auth.APIKey)
	}
}

func errorResult(b *ToolBinding, resp *http.Response, respBody []byte, isBinary bool, contentType string) *mcp.CallToolResult {
	opSummary := b.Op.Summary
	if opSummary == "" {
		opSummary = b.Op.Description
	}
	suggestion := "Check the input parameters, authentication, and consult the tool schema."
	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		suggestion = "Authentication or authorization failed. Ensure valid credentials are configured."
	case resp.StatusCode == 404:
		suggestion = "The resource was not found. Check if the resource ID or path is correct."
	}

	if isBinary {
		errorObj := map[string]any{
			"type": "api_response",
			"error": map[string]any{
				"code":        "http_error",
				"http_status": resp.StatusCode,
				"message":     fmt.Sprintf("%s (HTTP %d)", http.StatusText(resp.StatusCode), resp.StatusCode),
				"details":     "Binary response (see file_base64)",
				"suggestion":  suggestion,
				"mime_type":   contentType,
				"file_base64": base64.StdEncoding.EncodeToString(respBody),
				"operation":   map[string]any{"id": b.Op.OperationID, "summary": opSummary},
			},
		}
		errorJSON, _ := json.MarshalIndent(errorObj, "", "  ")
		return mcp.NewToolResultError(string(errorJSON))
	}

	errorText := fmt.Sprintf("HTTP Error: %s (HTTP %d)", http.StatusText(resp.StatusCode), resp.StatusCode)
	if len(respBody) > 0 {
		errorText += "\nDetails: " + string(respBody)
	}
	errorText += "\nSuggestion: " + suggestion
	errorText += fmt.Sprintf("\nOperation: %s (%s)", b.Op.OperationID, opSummary)
	return mcp.NewToolResultError(errorText)
}

func binaryResult(b *ToolBinding, resp *http.Response, respBody []byte, contentType string) *mcp.CallToolResult {
	fileName := "file"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if parts := strings.Split(cd, "filename="); len(parts) > 1 {
			fileName = strings.Trim(parts[1], `"`)
		}
	}
	resultObj := map[string]any{
		"type":        "api_response",
		"http_status": resp.StatusCode,
		"mime_type":   contentType,
		"file_base64": base64.StdEncoding.EncodeToString(respBody),
		"file_name":   fileName,
		"operation":   map[string]any{"id": b.Op.OperationID, "summary": b.Op.Summary},
	}
	resultJSON, _ := json.MarshalIndent(resultObj, "", "  ")
	return mcp.NewToolResultText(string(resultJSON))
}
