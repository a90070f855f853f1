// register.go
package openapi2mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"
	"github.com/xeipuuv/gojsonschema"
)

// GenerateTools builds a tool binding for every operation that survives
// filtering and classification. A single malformed operation is logged and
// skipped; the rest of the document still becomes a working server. Two
// operations sanitizing to the same tool name, or a document yielding no
// tools at all, abort generation.
func GenerateTools(ops []OpenAPIOperation, doc *openapi3.T, opts *ToolGenOptions) ([]*ToolBinding, error) {
	resolver, err := NewRefResolverFromDoc(doc)
	if err != nil {
		return nil, err
	}

	filterByTag := func(op OpenAPIOperation) bool {
		if opts == nil || len(opts.TagFilter) == 0 {
			return true
		}
		for _, tag := range op.Tags {
			for _, want := range opts.TagFilter {
				if tag == want {
					return true
				}
			}
		}
		return false
	}

	var bindings []*ToolBinding
	byName := map[string]string{}
	for _, op := range ops {
		if !filterByTag(op) {
			continue
		}
		name := SanitizeToolName(op.OperationID)
		if opts != nil && opts.NameFormat != nil {
			name = opts.NameFormat(name)
		}
		if prev, dup := byName[name]; dup {
			return nil, fmt.Errorf("tool name %q generated by both %s and %s", name, prev, op.OperationID)
		}

		buckets, err := ClassifyParameters(op, resolver)
		if err != nil {
			log.Warn().Err(err).Str("operation", op.OperationID).Msg("skipping malformed operation")
			continue
		}
		inputSchema := BuildInputSchema(buckets)
		if opts != nil && opts.PostProcessSchema != nil {
			inputSchema = opts.PostProcessSchema(name, inputSchema)
		}
		schemaJSON, err := json.MarshalIndent(inputSchema, "", "  ")
		if err != nil {
			log.Warn().Err(err).Str("operation", op.OperationID).Msg("skipping operation with unserializable schema")
			continue
		}

		byName[name] = op.OperationID
		bindings = append(bindings, &ToolBinding{
			Op:          op,
			Name:        name,
			Buckets:     buckets,
			InputSchema: inputSchema,
			SchemaJSON:  schemaJSON,
		})
	}
	if len(bindings) == 0 {
		return nil, fmt.Errorf("no tools could be generated from the OpenAPI document")
	}
	return bindings, nil
}

// RegisterOpenAPITools generates tools for the given operations and registers
// them on the MCP server, each handler validating its arguments and proxying
// the call through the executor. Meta tools (info, externalDocs, describe)
// are registered from the document metadata. Returns the registered tool names.
func RegisterOpenAPITools(server *mcpserver.MCPServer, ops []OpenAPIOperation, doc *openapi3.T, exec *Executor, opts *ToolGenOptions) ([]string, error) {
	bindings, err := GenerateTools(ops, doc, opts)
	if err != nil {
		return nil, err
	}

	var toolNames []string
	var generated []GeneratedTool
	for _, binding := range bindings {
		desc := binding.Op.Description
		if desc == "" {
			desc = binding.Op.Summary
		}
		generated = append(generated, GeneratedTool{
			Name:        binding.Name,
			Description: desc,
			Tags:        binding.Op.Tags,
			InputSchema: binding.InputSchema,
		})
		toolNames = append(toolNames, binding.Name)
		if opts != nil && opts.DryRun {
			continue
		}

		tool := mcp.NewToolWithRawSchema(binding.Name, desc, binding.SchemaJSON)
		tool.Annotations = toolAnnotations(binding.Op, opts)
		server.AddTool(tool, toolHandler(binding, exec))
	}

	if opts == nil || !opts.DryRun {
		toolNames = append(toolNames, registerMetaTools(server, doc, generated, opts)...)
	}

	if opts != nil && opts.DryRun {
		var out []byte
		if opts.PrettyPrint {
			out, _ = json.MarshalIndent(generated, "", "  ")
		} else {
			out, _ = json.Marshal(generated)
		}
		fmt.Println(string(out))
	}
	return toolNames, nil
}

func toolAnnotations(op OpenAPIOperation, opts *ToolGenOptions) mcp.ToolAnnotation {
	var titleParts []string
	if opts != nil && opts.Version != "" {
		titleParts = append(titleParts, "OpenAPI "+opts.Version)
	}
	if len(op.Tags) > 0 {
		titleParts = append(titleParts, "Tags: "+strings.Join(op.Tags, ", "))
	}
	return mcp.ToolAnnotation{Title: strings.Join(titleParts, " | ")}
}

// toolHandler closes over one binding. Argument validation failures are
// returned as errors, so the dispatcher reports them at the protocol level;
// upstream HTTP failures come back inside the tool result instead.
func toolHandler(binding *ToolBinding, exec *Executor) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		if err := validateArgs(binding, args); err != nil {
			return nil, err
		}
		return exec.Execute(ctx, binding, args)
	}
}

// validateArgs checks the call arguments against the tool's input schema and
// reports every failing field by name.
func validateArgs(binding *ToolBinding, args map[string]any) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", binding.Name, err)
	}
	schemaLoader := gojsonschema.NewBytesLoader(binding.SchemaJSON)
	argsLoader := gojsonschema.NewBytesLoader(argsJSON)
	result, err := gojsonschema.Validate(schemaLoader, argsLoader)
	if err != nil {
		return fmt.Errorf("argument validation failed for %s: %w", binding.Name, err)
	}
	if result.Valid() {
		return nil
	}

	var msgs []string
	for _, verr := range result.Errors() {
		switch verr.Type() {
		case "required":
			if missing, ok := verr.Details()["property"].(string); ok {
				msgs = append(msgs, fmt.Sprintf("missing required parameter %q", missing))
				continue
			}
			msgs = append(msgs, verr.String())
		default:
			msgs = append(msgs, fmt.Sprintf("parameter %q: %s", verr.Field(), verr.Description()))
		}
	}
	return fmt.Errorf("invalid arguments for %s: %s", binding.Name, strings.Join(msgs, "; "))
}

// registerMetaTools adds the info, externalDocs, and describe tools built
// from the document metadata.
func registerMetaTools(server *mcpserver.MCPServer, doc *openapi3.T, generated []GeneratedTool, opts *ToolGenOptions) []string {
	var names []string
	emptySchema := json.RawMessage(`{"type":"object","properties":{}}`)
	title := ""
	if opts != nil && opts.Version != "" {
		title = "OpenAPI " + opts.Version
	}

	if doc.ExternalDocs != nil && doc.ExternalDocs.URL != "" {
		tool := mcp.NewToolWithRawSchema("externalDocs", "Show the OpenAPI external documentation URL and description.", emptySchema)
		tool.Annotations = mcp.ToolAnnotation{Title: title}
		server.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			info := "External documentation URL: " + doc.ExternalDocs.URL
			if doc.ExternalDocs.Description != "" {
				info += "\nDescription: " + doc.ExternalDocs.Description
			}
			return mcp.NewToolResultText(info), nil
		})
		names = append(names, "externalDocs")
	}

	if doc.Info != nil {
		tool := mcp.NewToolWithRawSchema("info", "Show API metadata: title, version, description, and terms of service.", emptySchema)
		tool.Annotations = mcp.ToolAnnotation{Title: title}
		server.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var sb strings.Builder
			if doc.Info.Title != "" {
				sb.WriteString("Title: " + doc.Info.Title + "\n")
			}
			if doc.Info.Version != "" {
				sb.WriteString("Version: " + doc.Info.Version + "\n")
			}
			if doc.Info.Description != "" {
				sb.WriteString("Description: " + doc.Info.Description + "\n")
			}
			if doc.Info.TermsOfService != "" {
				sb.WriteString("Terms of Service: " + doc.Info.TermsOfService + "\n")
			}
			return mcp.NewToolResultText(strings.TrimSpace(sb.String())), nil
		})
		names = append(names, "info")
	}

	describeTool := mcp.NewToolWithRawSchema("describe", "Describe all available tools and their schemas in machine-readable form.", emptySchema)
	describeTool.Annotations = mcp.ToolAnnotation{Title: "Agent-Friendly Documentation"}
	server.AddTool(describeTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		response := map[string]any{
			"type":  "tool_descriptions",
			"tools": generated,
		}
		jsonOut, _ := json.MarshalIndent(response, "", "  ")
		return mcp.NewToolResultText(string(jsonOut)), nil
	})
	names = append(names, "describe")

	return names
}
