// classify.go
package openapi2mcp

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/phuslu/log"
)

// ParamLocation identifies where a tool argument is sent on the wire.
type ParamLocation string

const (
	LocationPath   ParamLocation = "path"
	LocationQuery  ParamLocation = "query"
	LocationHeader ParamLocation = "header"
	LocationBody   ParamLocation = "body"
)

// BoundParam is a declared parameter bound to one bucket. WireName is the
// name used on the wire; Name is the (possibly escaped) tool argument name.
type BoundParam struct {
	Name     string
	WireName string
	Schema   *ParamSchema
	Required bool
}

// BoundField is one top-level tool argument that travels in the request body.
// Source is the body property it recombines into; for an opaque body the
// whole argument value is the body.
type BoundField struct {
	Name     string
	Source   string
	Schema   *ParamSchema
	Required bool
}

// ParamBuckets is the classified view of one operation's inputs. Every tool
// argument lives in exactly one bucket.
type ParamBuckets struct {
	Path   []BoundParam
	Query  []BoundParam
	Header []BoundParam
	Body   []BoundField

	// BodyOpaque is set when the request body is not an object and is carried
	// as a single passthrough argument instead of expanded fields.
	BodyOpaque bool

	// BodyContentType is the upstream media type, when a body exists.
	BodyContentType string
}

// opaqueBodyField is the argument name for non-object request bodies.
const opaqueBodyField = "body"

// bodyFieldPrefix disambiguates body fields whose name collides with a
// declared parameter. The parameter keeps the plain name.
const bodyFieldPrefix = "body_"

// ClassifyParameters partitions an operation's declared parameters and request
// body into path/query/header/body buckets. Path parameters are always
// required, whatever the document says. Parameters in locations that cannot
// be carried (cookie, unknown) are logged and skipped.
func ClassifyParameters(op OpenAPIOperation, resolver *RefResolver) (*ParamBuckets, error) {
	b := &ParamBuckets{}
	seen := map[string]ParamLocation{}

	for _, paramRef := range op.Parameters {
		if paramRef == nil || paramRef.Value == nil {
			log.Warn().Str("operation", op.OperationID).Msg("skipping malformed parameter")
			continue
		}
		p := paramRef.Value
		name := escapeParameterName(p.Name)
		if prev, dup := seen[name]; dup {
			log.Warn().
				Str("operation", op.OperationID).
				Str("parameter", p.Name).
				Str("kept", string(prev)).
				Msg("duplicate argument name, keeping first occurrence")
			continue
		}

		desc := resolveParamSchema(p, resolver)
		switch p.In {
		case "path":
			// Path parameters are required even when the document marks them
			// optional: the URL cannot be built without them.
			b.Path = append(b.Path, BoundParam{Name: name, WireName: p.Name, Schema: desc, Required: true})
			seen[name] = LocationPath
		case "query":
			b.Query = append(b.Query, BoundParam{Name: name, WireName: p.Name, Schema: desc, Required: p.Required})
			seen[name] = LocationQuery
		case "header":
			b.Header = append(b.Header, BoundParam{Name: name, WireName: p.Name, Schema: desc, Required: p.Required})
			seen[name] = LocationHeader
		default:
			log.Warn().
				Str("operation", op.OperationID).
				Str("parameter", p.Name).
				Str("in", p.In).
				Msg("unsupported parameter location, skipping")
		}
	}

	if err := classifyBody(op, resolver, b, seen); err != nil {
		return nil, err
	}
	return b, nil
}

func resolveParamSchema(p *openapi3.Parameter, resolver *RefResolver) *ParamSchema {
	frag, err := schemaFragment(p.Schema)
	if err != nil {
		return unvalidated(err.Error())
	}
	if resolver != nil {
		frag = resolver.Inline(frag)
	}
	s := SchemaFromFragment(frag)
	if p.Description != "" {
		s.Description = p.Description
	}
	return s
}

func classifyBody(op OpenAPIOperation, resolver *RefResolver, b *ParamBuckets, seen map[string]ParamLocation) error {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	body := op.RequestBody.Value
	for mtName := range body.Content {
		if mtName != "application/json" {
			log.Warn().
				Str("operation", op.OperationID).
				Str("mediaType", mtName).
				Msg("request body media type is not fully supported")
		}
	}
	mt := body.Content.Get("application/json")
	if mt == nil || mt.Schema == nil {
		return nil
	}
	b.BodyContentType = "application/json"

	frag, err := schemaFragment(mt.Schema)
	if err != nil {
		return fmt.Errorf("operation %s: request body: %w", op.OperationID, err)
	}
	if resolver != nil {
		frag = resolver.Inline(frag)
	}
	desc := SchemaFromFragment(frag)

	if desc.Kind != KindObject || len(desc.Properties) == 0 {
		// Non-object (or opaque) bodies become a single passthrough argument.
		name := freeName(opaqueBodyField, seen)
		if desc.Description == "" {
			desc.Description = "The raw request body."
		}
		b.Body = append(b.Body, BoundField{Name: name, Source: "", Schema: desc, Required: body.Required})
		b.BodyOpaque = true
		seen[name] = LocationBody
		return nil
	}

	requiredProps := map[string]bool{}
	for _, r := range desc.Required {
		requiredProps[r] = true
	}
	for propName, propSchema := range desc.Properties {
		name := freeName(escapeParameterName(propName), seen)
		b.Body = append(b.Body, BoundField{
			Name:     name,
			Source:   propName,
			Schema:   propSchema,
			Required: body.Required && requiredProps[propName],
		})
		seen[name] = LocationBody
	}
	return nil
}

// freeName returns name, or the first prefixed variant not already taken by
// another argument.
func freeName(name string, seen map[string]ParamLocation) string {
	candidate := name
	for {
		if _, taken := seen[candidate]; !taken {
			return candidate
		}
		candidate = bodyFieldPrefix + candidate
	}
}
