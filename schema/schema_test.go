package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	type input struct {
		raw map[string]any
	}

	type expected struct {
		isNil  bool
		hasErr bool
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "nil schema returns nil",
			input:    input{raw: nil},
			expected: expected{isNil: true},
		},
		{
			name: "valid schema compiles",
			input: input{
				raw: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"city": map[string]any{"type": "string"},
					},
				},
			},
			expected: expected{},
		},
		{
			name: "invalid type keyword fails",
			input: input{
				raw: map[string]any{"type": 42},
			},
			expected: expected{isNil: true, hasErr: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Compile(tt.input.raw)

			if tt.expected.hasErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			if tt.expected.isNil {
				assert.Nil(t, s)
			} else {
				require.NotNil(t, s)
				assert.Equal(t, tt.input.raw, s.Raw())
			}
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	type input struct {
		schema map[string]any
		data   any
	}

	type expected struct {
		hasErr      bool
		minMessages int
	}

	person := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "number"},
		},
		"required": []any{"name"},
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "valid data passes",
			input:    input{schema: person, data: map[string]any{"name": "Ann", "age": 30}},
			expected: expected{},
		},
		{
			name:     "float64 from encoding/json passes",
			input:    input{schema: person, data: map[string]any{"name": "Ann", "age": float64(30.5)}},
			expected: expected{},
		},
		{
			name:     "missing required field fails",
			input:    input{schema: person, data: map[string]any{}},
			expected: expected{hasErr: true, minMessages: 1},
		},
		{
			name:     "wrong type fails",
			input:    input{schema: person, data: map[string]any{"name": "Ann", "age": "x"}},
			expected: expected{hasErr: true, minMessages: 1},
		},
		{
			name:     "two violations report two messages",
			input:    input{schema: person, data: map[string]any{"age": "x"}},
			expected: expected{hasErr: true, minMessages: 2},
		},
		{
			name: "array data validates",
			input: input{
				schema: map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
				data:   []any{1, 2, 3},
			},
			expected: expected{},
		},
		{
			name: "array item violation fails",
			input: input{
				schema: map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
				data:   []any{1, "two"},
			},
			expected: expected{hasErr: true, minMessages: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Compile(tt.input.schema)
			require.NoError(t, err)

			err = s.Validate(tt.input.data)

			if !tt.expected.hasErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
			assert.GreaterOrEqual(t, len(verr.Messages), tt.expected.minMessages)
			for _, msg := range verr.Messages {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestSchema_Validate_NilSchema(t *testing.T) {
	var s *Schema
	err := s.Validate(map[string]any{"foo": "bar"})
	assert.NoError(t, err, "nil schema should always pass validation")
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile(map[string]any{"type": 42})
	})
	assert.NotPanics(t, func() {
		MustCompile(map[string]any{"type": "object"})
	})
}

func TestObject_Basic(t *testing.T) {
	schema := Object(map[string]*Property{
		"a": Number("First addend"),
		"b": Number("Second addend"),
	}, "a", "b")

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "expected properties map")
	assert.Len(t, props, 2)

	required, ok := schema["required"].([]string)
	require.True(t, ok, "expected required array")
	assert.Equal(t, []string{"a", "b"}, required)
}

func TestStrict(t *testing.T) {
	base := Object(map[string]*Property{"a": Number("A")})
	strict := Strict(base)

	assert.Equal(t, false, strict["additionalProperties"])
	_, ok := base["additionalProperties"]
	assert.False(t, ok, "Strict must not mutate its input")

	s := MustCompile(strict)
	assert.NoError(t, s.Validate(map[string]any{"a": 1}))
	assert.Error(t, s.Validate(map[string]any{"a": 1, "b": 2}))
}

func TestProperty_Build(t *testing.T) {
	type expected struct {
		built map[string]any
	}

	tests := []struct {
		name     string
		input    *Property
		expected expected
	}{
		{
			name:  "string with constraints",
			input: String("City").MinLength(1).MaxLength(100).Pattern("^[A-Z]").Format("hostname"),
			expected: expected{built: map[string]any{
				"type":        "string",
				"description": "City",
				"minLength":   1,
				"maxLength":   100,
				"pattern":     "^[A-Z]",
				"format":      "hostname",
			}},
		},
		{
			name:  "integer with bounds",
			input: Integer("Count").Min(0).Max(10),
			expected: expected{built: map[string]any{
				"type":        "integer",
				"description": "Count",
				"minimum":     float64(0),
				"maximum":     float64(10),
			}},
		},
		{
			name:  "nullable string",
			input: String("Tool").Nullable().Nullable(),
			expected: expected{built: map[string]any{
				"type":        []string{"string", "null"},
				"description": "Tool",
			}},
		},
		{
			name:  "any has no type",
			input: Any("Anything"),
			expected: expected{built: map[string]any{
				"description": "Anything",
			}},
		},
		{
			name:  "enum and default",
			input: String("Units").Enum("metric", "imperial").Default("metric"),
			expected: expected{built: map[string]any{
				"type":        "string",
				"description": "Units",
				"enum":        []any{"metric", "imperial"},
				"default":     "metric",
			}},
		},
		{
			name:  "array of booleans",
			input: Array("Flags", Boolean("flag").build()),
			expected: expected{built: map[string]any{
				"type":        "array",
				"description": "Flags",
				"items":       map[string]any{"type": "boolean", "description": "flag"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected.built, tt.input.build())
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	type expected struct {
		msg string
	}

	tests := []struct {
		name     string
		input    *ValidationError
		expected expected
	}{
		{
			name:     "without messages",
			input:    &ValidationError{Err: nil},
			expected: expected{msg: "schema validation failed: <nil>"},
		},
		{
			name:     "with messages",
			input:    &ValidationError{Messages: []string{"/: missing a", "/b: want number"}},
			expected: expected{msg: "schema validation failed: /: missing a; /b: want number"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected.msg, tt.input.Error())
		})
	}
}

func TestValidationError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	outer := &ValidationError{Err: inner}
	assert.ErrorIs(t, outer, inner)
}
