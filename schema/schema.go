// Package schema builds and validates JSON Schemas.
//
// Schemas serve two purposes: tools declare their parameters with them (the raw map is
// rendered into the tool prompt), and the output parser validates untrusted model output
// against them.
//
// # Quick Start
//
//	weather := schema.Object(map[string]*schema.Property{
//	    "city":  schema.String("City name").MinLength(1),
//	    "units": schema.String("Unit system").Enum("metric", "imperial").Default("metric"),
//	}, "city") // "city" is required
//
//	s := schema.MustCompile(weather)
//	if err := s.Validate(args); err != nil {
//	    var verr *schema.ValidationError
//	    errors.As(err, &verr) // verr.Messages has one entry per violated constraint
//	}
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema pairs the raw schema map, which is rendered into prompts, with its compiled
// validator.
type Schema struct {
	raw      map[string]any
	compiled *jsonschema.Schema
}

// Raw returns the schema map as it was compiled.
func (s *Schema) Raw() map[string]any {
	if s == nil {
		return nil
	}
	return s.raw
}

// Validate validates decoded JSON data (objects, arrays or scalars) against the schema.
// Returns nil if valid, or a *ValidationError describing every violated constraint.
//
// Data decoded with encoding/json, or built from Go literals, is normalized through a JSON
// round trip first so integer-valued float64s and json.Number compare correctly.
func (s *Schema) Validate(data any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	normalized, err := normalize(data)
	if err != nil {
		return &ValidationError{Err: err, Messages: []string{err.Error()}}
	}
	if err := s.compiled.Validate(normalized); err != nil {
		return &ValidationError{Err: err, Messages: messages(err)}
	}
	return nil
}

// ValidationError wraps a JSON Schema validation error. Messages holds one human-readable
// entry per violated constraint.
type ValidationError struct {
	Err      error
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("schema validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// messages flattens a jsonschema error into one line per failing keyword.
func messages(err error) []string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}

	var out []string
	if unit := verr.BasicOutput(); unit != nil {
		for _, e := range unit.Errors {
			if e.Error == nil {
				continue
			}
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %v", loc, e.Error))
		}
	}
	if len(out) == 0 {
		out = []string{verr.Error()}
	}
	return out
}

func normalize(data any) (any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

// Compile builds a validator for raw.
// A nil map compiles to a nil *Schema, which accepts everything.
func Compile(raw map[string]any) (*Schema, error) {
	if raw == nil {
		return nil, nil
	}

	schemaJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	schemaData, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Schema{
		raw:      raw,
		compiled: compiled,
	}, nil
}

// MustCompile is Compile for package-level schemas; it panics on error.
func MustCompile(raw map[string]any) *Schema {
	s, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// -----------------------------------------------------------------------------
// Schema Builders
// -----------------------------------------------------------------------------

// Object builds an object schema; the trailing names are required.
//
// Example:
//
//	schema.Object(map[string]*schema.Property{
//	    "a": schema.Number("First addend"),
//	    "b": schema.Number("Second addend"),
//	}, "a", "b")
func Object(properties map[string]*Property, required ...string) map[string]any {
	props := make(map[string]any, len(properties))
	for name, prop := range properties {
		props[name] = prop.build()
	}

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// Strict returns a copy of an object schema that rejects unknown properties.
func Strict(object map[string]any) map[string]any {
	out := make(map[string]any, len(object)+1)
	for k, v := range object {
		out[k] = v
	}
	out["additionalProperties"] = false
	return out
}

// Property is one field of an object schema, built with chained setters.
type Property struct {
	types       []string
	description string
	enum        []any
	format      string
	minimum     *float64
	maximum     *float64
	minLength   *int
	maxLength   *int
	pattern     string
	items       map[string]any
	def         any
}

func (p *Property) build() map[string]any {
	m := map[string]any{}

	switch len(p.types) {
	case 0:
	case 1:
		m["type"] = p.types[0]
	default:
		m["type"] = p.types
	}
	if p.description != "" {
		m["description"] = p.description
	}
	if len(p.enum) > 0 {
		m["enum"] = p.enum
	}
	if p.format != "" {
		m["format"] = p.format
	}
	if p.minimum != nil {
		m["minimum"] = *p.minimum
	}
	if p.maximum != nil {
		m["maximum"] = *p.maximum
	}
	if p.minLength != nil {
		m["minLength"] = *p.minLength
	}
	if p.maxLength != nil {
		m["maxLength"] = *p.maxLength
	}
	if p.pattern != "" {
		m["pattern"] = p.pattern
	}
	if p.items != nil {
		m["items"] = p.items
	}
	if p.def != nil {
		m["default"] = p.def
	}

	return m
}

// String is a string-typed property.
//
// Example:
//
//	schema.String("City name").MinLength(1)
//	schema.String("Status").Enum("active", "inactive")
func String(description string) *Property {
	return &Property{types: []string{"string"}, description: description}
}

// Integer is an integer-typed property.
func Integer(description string) *Property {
	return &Property{types: []string{"integer"}, description: description}
}

// Number is a number-typed property.
//
// Example:
//
//	schema.Number("Amount in cents").Min(0)
func Number(description string) *Property {
	return &Property{types: []string{"number"}, description: description}
}

// Boolean is a boolean-typed property.
func Boolean(description string) *Property {
	return &Property{types: []string{"boolean"}, description: description}
}

// Any creates a property without a type constraint.
func Any(description string) *Property {
	return &Property{description: description}
}

// Array is an array-typed property whose elements match items.
//
// Example:
//
//	schema.Array("List of tags", map[string]any{"type": "string"})
func Array(description string, items map[string]any) *Property {
	return &Property{types: []string{"array"}, description: description, items: items}
}

// Nullable additionally allows null for the property.
//
// Example:
//
//	schema.String("Tool name to call, or null for no call").Nullable()
func (p *Property) Nullable() *Property {
	for _, t := range p.types {
		if t == "null" {
			return p
		}
	}
	if len(p.types) > 0 {
		p.types = append(p.types, "null")
	}
	return p
}

// Enum restricts the property to values.
func (p *Property) Enum(values ...any) *Property {
	p.enum = values
	return p
}

// Format sets the string format keyword.
//
// Common formats: "email", "date-time", "date", "time", "uri", "uuid".
func (p *Property) Format(format string) *Property {
	p.format = format
	return p
}

// Min sets the inclusive lower bound.
func (p *Property) Min(min float64) *Property {
	p.minimum = &min
	return p
}

// Max sets the inclusive upper bound.
func (p *Property) Max(max float64) *Property {
	p.maximum = &max
	return p
}

// MinLength sets the minimum string length.
func (p *Property) MinLength(min int) *Property {
	p.minLength = &min
	return p
}

// MaxLength sets the maximum string length.
func (p *Property) MaxLength(max int) *Property {
	p.maxLength = &max
	return p
}

// Pattern sets the regular expression a string must match.
func (p *Property) Pattern(pattern string) *Property {
	p.pattern = pattern
	return p
}

// Default records the value assumed when the property is absent.
func (p *Property) Default(value any) *Property {
	p.def = value
	return p
}
