// Package openapi2mcp turns OpenAPI operations into MCP tools and servers.
// It loads OpenAPI documents, resolves references, classifies parameters,
// generates tool input schemas, and executes real HTTP calls against the
// upstream API when tools are invoked.
package openapi2mcp

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPIOperation describes a single OpenAPI operation to be mapped to an MCP tool.
// It includes the operation's ID, summary, description, HTTP path/method, parameters, request body, and tags.
type OpenAPIOperation struct {
	OperationID string
	Summary     string
	Description string
	Path        string
	Method      string
	Parameters  openapi3.Parameters
	RequestBody *openapi3.RequestBodyRef
	Tags        []string
	Security    openapi3.SecurityRequirements
	Deprecated  bool
}

// ToolGenOptions controls tool generation and output.
//
// NameFormat: function applied to sanitized tool names (e.g., strings.ToLower)
// TagFilter: only include operations with at least one of these tags (if non-empty)
// DryRun: if true, only collect the generated tool schemas, don't register handlers
// PrettyPrint: if true, pretty-print dry-run output
// Version: version string to embed in tool annotations
// PostProcessSchema: optional hook to modify each tool's input schema before registration
type ToolGenOptions struct {
	NameFormat        func(string) string
	TagFilter         []string
	DryRun            bool
	PrettyPrint       bool
	Version           string
	PostProcessSchema func(toolName string, schema map[string]any) map[string]any
}

// GeneratedTool records the outcome of generating one tool, used by the
// describe meta-tool and by dry-run output.
type GeneratedTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolBinding ties a generated tool to the operation it calls: the classified
// parameter buckets and the compiled input schema used for validation.
type ToolBinding struct {
	Op          OpenAPIOperation
	Name        string
	Buckets     *ParamBuckets
	InputSchema map[string]any
	SchemaJSON  []byte
}
