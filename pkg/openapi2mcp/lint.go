// lint.go
package openapi2mcp

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// LintIssue represents a single issue found while checking an OpenAPI document
// for MCP tool generation.
type LintIssue struct {
	Type      string `json:"type"` // "error" or "warning"
	Message   string `json:"message"`
	Operation string `json:"operation,omitempty"`
	Path      string `json:"path,omitempty"`
	Method    string `json:"method,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// LintResult represents the outcome of linting an OpenAPI document.
type LintResult struct {
	Success      bool        `json:"success"`
	ErrorCount   int         `json:"error_count"`
	WarningCount int         `json:"warning_count"`
	Issues       []LintIssue `json:"issues"`
}

// LintDocument checks that the document produces a usable tool set: every
// operation has a stable identity, no two operations collapse to the same
// tool name, and arguments whose schemas degrade to accept-anything are
// reported so the caller knows validation is weakened there.
func LintDocument(doc *openapi3.T) *LintResult {
	result := &LintResult{Success: true}
	add := func(issue LintIssue) {
		result.Issues = append(result.Issues, issue)
		if issue.Type == "error" {
			result.ErrorCount++
			result.Success = false
		} else {
			result.WarningCount++
		}
	}

	ops := ExtractOpenAPIOperations(doc)
	if len(ops) == 0 {
		add(LintIssue{Type: "error", Message: "document contains no operations"})
		return result
	}

	resolver, err := NewRefResolverFromDoc(doc)
	if err != nil {
		add(LintIssue{Type: "error", Message: err.Error()})
		return result
	}

	byName := map[string]string{}
	for _, op := range ops {
		if op.OperationID == fmt.Sprintf("%s_%s", op.Method, op.Path) {
			add(LintIssue{
				Type:      "warning",
				Message:   "operation has no operationId, tool name derived from method and path",
				Operation: op.OperationID,
				Path:      op.Path,
				Method:    op.Method,
			})
		}
		name := SanitizeToolName(op.OperationID)
		if prev, dup := byName[name]; dup {
			add(LintIssue{
				Type:      "error",
				Message:   fmt.Sprintf("tool name %q collides with operation %s", name, prev),
				Operation: op.OperationID,
				Path:      op.Path,
				Method:    op.Method,
			})
			continue
		}
		byName[name] = op.OperationID

		buckets, err := ClassifyParameters(op, resolver)
		if err != nil {
			add(LintIssue{
				Type:      "error",
				Message:   err.Error(),
				Operation: op.OperationID,
				Path:      op.Path,
				Method:    op.Method,
			})
			continue
		}
		lintBuckets(op, buckets, add)

		if op.Summary == "" && op.Description == "" {
			add(LintIssue{
				Type:      "warning",
				Message:   "operation has no summary or description",
				Operation: op.OperationID,
				Path:      op.Path,
				Method:    op.Method,
			})
		}
	}
	return result
}

func lintBuckets(op OpenAPIOperation, b *ParamBuckets, add func(LintIssue)) {
	check := func(name string, s *ParamSchema) {
		if s.Unvalidated() {
			add(LintIssue{
				Type:      "warning",
				Message:   "argument accepts any value: " + s.Reason,
				Operation: op.OperationID,
				Path:      op.Path,
				Method:    op.Method,
				Parameter: name,
			})
		}
	}
	for _, p := range b.Path {
		check(p.Name, p.Schema)
	}
	for _, p := range b.Query {
		check(p.Name, p.Schema)
	}
	for _, p := range b.Header {
		check(p.Name, p.Schema)
	}
	for _, f := range b.Body {
		check(f.Name, f.Schema)
	}
}
