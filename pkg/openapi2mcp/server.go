// server.go
package openapi2mcp

import (
	"github.com/getkin/kin-openapi/openapi3"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server, registers all OpenAPI tools, and returns
// the server. Equivalent to calling RegisterOpenAPITools with all operations
// from the document.
// Example usage for NewServer:
//
//	doc, _ := openapi2mcp.LoadOpenAPISpec("petstore.yaml")
//	exec := openapi2mcp.NewExecutor("https://api.example.com", auth)
//	srv, err := openapi2mcp.NewServer("petstore", doc.Info.Version, doc, exec)
func NewServer(name, version string, doc *openapi3.T, exec *Executor) (*mcpserver.MCPServer, error) {
	return NewServerWithOps(name, version, doc, ExtractOpenAPIOperations(doc), exec, nil)
}

// NewServerWithOps creates a new MCP server and registers the provided
// OpenAPI operations on it, honoring the generation options.
func NewServerWithOps(name, version string, doc *openapi3.T, ops []OpenAPIOperation, exec *Executor, opts *ToolGenOptions) (*mcpserver.MCPServer, error) {
	srv := mcpserver.NewMCPServer(name, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)
	if _, err := RegisterOpenAPITools(srv, ops, doc, exec, opts); err != nil {
		return nil, err
	}
	return srv, nil
}

// ServeStdio starts the MCP server on stdin/stdout and blocks until the
// client disconnects.
func ServeStdio(server *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(server)
}
