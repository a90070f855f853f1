// resolve.go
package openapi2mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-openapi/jsonpointer"
)

// circularRefKey marks a placeholder produced when resolving a reference cycle.
// The schema builder maps it to an unvalidated descriptor.
const circularRefKey = "x-circular-ref"

// RefResolver inlines $ref pointers in schema fragments against a raw
// (map-based) view of the OpenAPI document. Resolution is pure: the input
// fragment and the document are never mutated.
type RefResolver struct {
	root map[string]any
}

// NewRefResolver creates a resolver over the given raw document.
func NewRefResolver(root map[string]any) *RefResolver {
	return &RefResolver{root: root}
}

// NewRefResolverFromDoc creates a resolver from a parsed OpenAPI document.
// The document is serialized back to JSON, which preserves $ref markers, so
// the resolver sees the same reference graph the author wrote.
func NewRefResolverFromDoc(doc *openapi3.T) (*RefResolver, error) {
	data, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize OpenAPI document: %w", err)
	}
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to rebuild raw OpenAPI document: %w", err)
	}
	return &RefResolver{root: root}, nil
}

// Inline returns a copy of the fragment with every reachable $ref replaced by
// its target. Keywords that sit next to a $ref are merged over the resolved
// target, with the local keys winning. A reference that points back into a
// schema currently being resolved is replaced by an untyped placeholder, so
// cyclic documents resolve in finite time.
func (r *RefResolver) Inline(fragment map[string]any) map[string]any {
	out, ok := r.inline(fragment, map[string]bool{}).(map[string]any)
	if !ok {
		return fragment
	}
	return out
}

func (r *RefResolver) inline(node any, visited map[string]bool) any {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			return r.resolveRef(ref, v, visited)
		}
		out := make(map[string]any, len(v))
		for k, sub := range v {
			out[k] = r.inline(sub, visited)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, sub := range v {
			out[i] = r.inline(sub, visited)
		}
		return out
	default:
		return node
	}
}

func (r *RefResolver) resolveRef(ref string, node map[string]any, visited map[string]bool) any {
	if visited[ref] {
		return map[string]any{
			circularRefKey: ref,
			"description":  "Circular reference to " + refName(ref),
		}
	}

	target, err := r.lookup(ref)
	if err != nil {
		return map[string]any{
			circularRefKey: ref,
			"description":  fmt.Sprintf("Unresolvable reference %s: %v", ref, err),
		}
	}

	visited[ref] = true
	resolved := r.inline(target, visited)
	delete(visited, ref)

	// Merge sibling keywords over the resolved target, local keys winning.
	siblings := make(map[string]any)
	for k, sub := range node {
		if k != "$ref" {
			siblings[k] = r.inline(sub, visited)
		}
	}
	if len(siblings) == 0 {
		return resolved
	}
	merged, ok := resolved.(map[string]any)
	if !ok {
		return resolved
	}
	out := make(map[string]any, len(merged)+len(siblings))
	for k, sub := range merged {
		out[k] = sub
	}
	for k, sub := range siblings {
		out[k] = sub
	}
	return out
}

func (r *RefResolver) lookup(ref string) (any, error) {
	if !strings.HasPrefix(ref, "#") {
		return nil, fmt.Errorf("only document-local references are supported")
	}
	ptr, err := jsonpointer.New(strings.TrimPrefix(ref, "#"))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON pointer: %w", err)
	}
	target, _, err := ptr.Get(r.root)
	if err != nil {
		return nil, fmt.Errorf("pointer lookup failed: %w", err)
	}
	return target, nil
}

// refName returns the last path segment of a reference, e.g.
// "#/components/schemas/Pet" yields "Pet".
func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 && i+1 < len(ref) {
		return ref[i+1:]
	}
	return ref
}

// schemaFragment converts a typed schema reference into a raw fragment,
// preserving any $ref marker for the resolver.
func schemaFragment(ref *openapi3.SchemaRef) (map[string]any, error) {
	if ref == nil {
		return nil, fmt.Errorf("missing schema")
	}
	data, err := ref.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema: %w", err)
	}
	var frag map[string]any
	if err := json.Unmarshal(data, &frag); err != nil {
		return nil, fmt.Errorf("failed to rebuild schema fragment: %w", err)
	}
	return frag, nil
}
