// schema.go
package openapi2mcp

import (
	"strings"
)

// SchemaKind enumerates the closed set of descriptor kinds a tool argument
// can have. Anything the translator cannot faithfully express degrades to
// KindUnvalidated rather than being silently dropped.
type SchemaKind string

const (
	KindString      SchemaKind = "string"
	KindNumber      SchemaKind = "number"
	KindInteger     SchemaKind = "integer"
	KindBoolean     SchemaKind = "boolean"
	KindArray       SchemaKind = "array"
	KindObject      SchemaKind = "object"
	KindUnvalidated SchemaKind = "unvalidated"
)

// ParamSchema is the internal descriptor for a single tool argument.
// It is a tagged union over Kind: Items is set for arrays, Properties and
// Required for objects, Reason for unvalidated descriptors.
type ParamSchema struct {
	Kind        SchemaKind
	Description string
	Format      string
	Enum        []any
	Default     any
	Example     any
	Items       *ParamSchema
	Properties  map[string]*ParamSchema
	Required    []string
	Reason      string
}

// Unvalidated reports whether the descriptor degraded to accept-anything.
func (s *ParamSchema) Unvalidated() bool {
	return s != nil && s.Kind == KindUnvalidated
}

// unvalidated builds a degraded descriptor carrying the reason, so callers
// can observe why validation was given up for this argument.
func unvalidated(reason string) *ParamSchema {
	return &ParamSchema{Kind: KindUnvalidated, Reason: reason}
}

// SchemaFromFragment converts a resolved (ref-free) schema fragment into a
// ParamSchema descriptor. Unsupported constructs (oneOf, anyOf, not) and
// circular-reference placeholders degrade to KindUnvalidated.
func SchemaFromFragment(frag map[string]any) *ParamSchema {
	if frag == nil {
		return unvalidated("missing schema")
	}
	if ref, ok := frag[circularRefKey].(string); ok {
		s := unvalidated("circular reference to " + refName(ref))
		s.Description, _ = frag["description"].(string)
		return s
	}
	if merged, ok := mergeAllOf(frag); ok {
		frag = merged
	}
	for _, kw := range []string{"oneOf", "anyOf", "not"} {
		if _, ok := frag[kw]; ok {
			s := unvalidated(kw + " is not supported")
			s.Description, _ = frag["description"].(string)
			return s
		}
	}

	s := &ParamSchema{}
	s.Description, _ = frag["description"].(string)
	s.Format, _ = frag["format"].(string)
	s.Enum, _ = frag["enum"].([]any)
	s.Default = frag["default"]
	s.Example = frag["example"]

	typ, _ := frag["type"].(string)
	switch typ {
	case "string":
		s.Kind = KindString
	case "number":
		s.Kind = KindNumber
	case "integer":
		s.Kind = KindInteger
	case "boolean":
		s.Kind = KindBoolean
	case "array":
		s.Kind = KindArray
		if items, ok := frag["items"].(map[string]any); ok {
			s.Items = SchemaFromFragment(items)
		}
	case "object":
		s.Kind = KindObject
		fillObject(s, frag)
	case "":
		// Untyped fragments with structure are treated as what they look like.
		if _, ok := frag["properties"]; ok {
			s.Kind = KindObject
			fillObject(s, frag)
			return s
		}
		if items, ok := frag["items"].(map[string]any); ok {
			s.Kind = KindArray
			s.Items = SchemaFromFragment(items)
			return s
		}
		return &ParamSchema{
			Kind:        KindUnvalidated,
			Reason:      "schema has no type",
			Description: s.Description,
		}
	default:
		return &ParamSchema{
			Kind:        KindUnvalidated,
			Reason:      "unsupported type " + typ,
			Description: s.Description,
		}
	}
	return s
}

func fillObject(s *ParamSchema, frag map[string]any) {
	if props, ok := frag["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*ParamSchema, len(props))
		for name, sub := range props {
			subFrag, _ := sub.(map[string]any)
			s.Properties[name] = SchemaFromFragment(subFrag)
		}
	}
	if req, ok := frag["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
}

// mergeAllOf flattens an allOf composition into a single fragment. Subschema
// keys are merged in order, properties and required unioned, and the outer
// fragment's own keys win last.
func mergeAllOf(frag map[string]any) (map[string]any, bool) {
	subs, ok := frag["allOf"].([]any)
	if !ok || len(subs) == 0 {
		return nil, false
	}
	merged := map[string]any{}
	mergedProps := map[string]any{}
	var mergedReq []any
	overlay := func(m map[string]any) {
		for k, v := range m {
			switch k {
			case "allOf":
			case "properties":
				if props, ok := v.(map[string]any); ok {
					for pk, pv := range props {
						mergedProps[pk] = pv
					}
				}
			case "required":
				if req, ok := v.([]any); ok {
					mergedReq = append(mergedReq, req...)
				}
			default:
				merged[k] = v
			}
		}
	}
	for _, sub := range subs {
		if m, ok := sub.(map[string]any); ok {
			overlay(m)
		}
	}
	overlay(frag)
	if len(mergedProps) > 0 {
		merged["properties"] = mergedProps
	}
	if len(mergedReq) > 0 {
		merged["required"] = mergedReq
	}
	return merged, true
}

// JSONSchema renders the descriptor as a JSON Schema fragment. Unvalidated
// descriptors render as an empty (accept-anything) schema, keeping the
// description so clients still see what the argument means.
func (s *ParamSchema) JSONSchema() map[string]any {
	out := map[string]any{}
	if s == nil {
		return out
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Kind == KindUnvalidated {
		return out
	}
	out["type"] = string(s.Kind)
	if s.Format != "" {
		out["format"] = s.Format
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Default != nil {
		out["default"] = s.Default
	}
	if s.Example != nil {
		out["example"] = s.Example
	}
	if s.Kind == KindArray && s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	if s.Kind == KindObject {
		props := map[string]any{}
		for name, sub := range s.Properties {
			props[name] = sub.JSONSchema()
		}
		out["properties"] = props
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
	}
	return out
}

// escapeParameterName converts parameter names with brackets to MCP-compatible names.
// For example: "filter[created_at]" becomes "filter_created_at_"
// The trailing underscore distinguishes escaped names from naturally occurring names.
func escapeParameterName(name string) string {
	if !strings.Contains(name, "[") && !strings.Contains(name, "]") {
		return name
	}
	escaped := strings.ReplaceAll(name, "[", "_")
	escaped = strings.ReplaceAll(escaped, "]", "_")
	if !strings.HasSuffix(escaped, "_") {
		escaped += "_"
	}
	return escaped
}

// BuildInputSchema merges all classified buckets into the single JSON Schema
// object advertised for the tool and used to validate call arguments.
func BuildInputSchema(b *ParamBuckets) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if b == nil {
		return schema
	}
	properties := schema["properties"].(map[string]any)
	var required []string

	addParam := func(p BoundParam) {
		properties[p.Name] = p.Schema.JSONSchema()
		if p.Required {
			required = append(required, p.Name)
		}
	}
	for _, p := range b.Path {
		addParam(p)
	}
	for _, p := range b.Query {
		addParam(p)
	}
	for _, p := range b.Header {
		addParam(p)
	}
	for _, f := range b.Body {
		properties[f.Name] = f.Schema.JSONSchema()
		if f.Required {
			required = append(required, f.Name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
