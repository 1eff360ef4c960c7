package output

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/schema"
)

func TestExtract(t *testing.T) {
	type input struct {
		content string
		strip   bool
	}

	type expected struct {
		json string
		err  error
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "bare object",
			input:    input{content: `{"a":1}`, strip: true},
			expected: expected{json: `{"a":1}`},
		},
		{
			name:     "object with leading and trailing prose",
			input:    input{content: `Sure! {"a":{"b":[1,2]}} hope this helps`, strip: true},
			expected: expected{json: `{"a":{"b":[1,2]}}`},
		},
		{
			name:     "array before object",
			input:    input{content: `[1, {"a":2}] {"b":3}`, strip: true},
			expected: expected{json: `[1, {"a":2}]`},
		},
		{
			name:     "object before array",
			input:    input{content: `x {"a":[1]} [2]`, strip: true},
			expected: expected{json: `{"a":[1]}`},
		},
		{
			name:     "json fence",
			input:    input{content: "  ```json\n{\"a\": 1}\n```  ", strip: true},
			expected: expected{json: `{"a": 1}`},
		},
		{
			name:     "untagged fence",
			input:    input{content: "```\n[true]\n```", strip: true},
			expected: expected{json: `[true]`},
		},
		{
			name:     "fence left in place still finds json",
			input:    input{content: "```json\n{\"a\": 1}\n```", strip: false},
			expected: expected{json: `{"a": 1}`},
		},
		{
			name:     "escaped quote inside string",
			input:    input{content: `{"q":"say \"hi\""}`, strip: true},
			expected: expected{json: `{"q":"say \"hi\""}`},
		},
		{
			name:     "escaped bracket is skipped",
			input:    input{content: `{"a":"\}"}`, strip: true},
			expected: expected{json: `{"a":"\}"}`},
		},
		{
			name:     "empty",
			input:    input{content: "   ", strip: true},
			expected: expected{err: gentflow.ErrEmptyContent},
		},
		{
			name:     "empty fence",
			input:    input{content: "```json\n```", strip: true},
			expected: expected{err: gentflow.ErrEmptyContent},
		},
		{
			name:     "no json",
			input:    input{content: "not json", strip: true},
			expected: expected{err: gentflow.ErrNoJSONFound},
		},
		{
			name:     "unclosed",
			input:    input{content: `{"a": {"b": 1}`, strip: true},
			expected: expected{err: gentflow.ErrUnclosedBracket},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.input.content, tt.input.strip)
			if tt.expected.err != nil {
				assert.ErrorIs(t, err, tt.expected.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected.json, got)
		})
	}
}

var personSchema = schema.MustCompile(schema.Object(map[string]*schema.Property{
	"name": schema.String("Name"),
	"age":  schema.Number("Age"),
}, "age"))

func TestController_Parse(t *testing.T) {
	type input struct {
		content string
		opts    ParseOptions
	}

	type expected struct {
		data any
		err  error
		raw  string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "valid without schema",
			input:    input{content: `{"a":[1,"x",null]}`},
			expected: expected{data: map[string]any{"a": []any{float64(1), "x", nil}}},
		},
		{
			name:     "valid with schema",
			input:    input{content: "```json\n{\"age\": 3}\n```", opts: ParseOptions{Schema: personSchema}},
			expected: expected{data: map[string]any{"age": float64(3)}},
		},
		{
			name:     "not json is a no-json error",
			input:    input{content: "not json"},
			expected: expected{err: gentflow.ErrNoJSONFound, raw: "not json"},
		},
		{
			name:     "malformed json is a parse error",
			input:    input{content: `here: {"a": 1,} done`},
			expected: expected{err: gentflow.ErrInvalidJSON, raw: `{"a": 1,}`},
		},
		{
			name:     "bare word in braces",
			input:    input{content: `{not json}`},
			expected: expected{err: gentflow.ErrInvalidJSON, raw: `{not json}`},
		},
		{
			name:     "schema mismatch is a validation error",
			input:    input{content: `{"age":"x"}`, opts: ParseOptions{Schema: personSchema}},
			expected: expected{err: gentflow.ErrValidationFailed, raw: `{"age":"x"}`},
		},
		{
			name:     "unclosed keeps original content as raw",
			input:    input{content: `{"age": 1`},
			expected: expected{err: gentflow.ErrUnclosedBracket, raw: `{"age": 1`},
		},
		{
			name:     "strip off per call leaves fence prose",
			input:    input{content: "```json\n[1]\n```", opts: ParseOptions{Strip: StripOff}},
			expected: expected{data: []any{float64(1)}},
		},
	}

	c := NewController()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := c.Parse(tt.input.content, tt.input.opts)
			if tt.expected.err == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.expected.data, data)
				return
			}

			require.Error(t, err)
			assert.Nil(t, data)
			assert.ErrorIs(t, err, tt.expected.err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.NotEmpty(t, perr.Errors)
			assert.Equal(t, tt.expected.raw, perr.Raw)
			assert.Equal(t, perr.Errors, Messages(err))
		})
	}
}

func TestController_RawIsCapped(t *testing.T) {
	long := "{" + strings.Repeat("é", 800)
	_, err := NewController().Parse(long, ParseOptions{})

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, DefaultRawLimit, len([]rune(perr.Raw)))

	_, err = NewController().WithRawLimit(10).Parse(strings.Repeat("x", 50), ParseOptions{})
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, strings.Repeat("x", 10), perr.Raw)
}

func TestController_DefaultStrip(t *testing.T) {
	// Without stripping the fence stays, but the object inside is still found.
	c := NewController().WithStripMarkdown(false)
	data, err := c.Parse("```json\n{\"a\":1}\n```", ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, data)

	// A fence that would otherwise hide an empty body.
	_, err = NewController().Parse("```\n\n```", ParseOptions{Strip: StripOn})
	assert.ErrorIs(t, err, gentflow.ErrEmptyContent)
}

func TestParseAs(t *testing.T) {
	type person struct {
		Name string  `json:"name"`
		Age  float64 `json:"age"`
	}

	got, err := ParseAs[person](NewController(), "Result:\n```json\n{\"name\":\"Ann\",\"age\":41}\n```", ParseOptions{Schema: personSchema})
	require.NoError(t, err)
	assert.Equal(t, person{Name: "Ann", Age: 41}, got)

	_, err = ParseAs[person](NewController(), `{"name":"Ann"}`, ParseOptions{Schema: personSchema})
	assert.ErrorIs(t, err, gentflow.ErrValidationFailed)

	_, err = ParseAs[person](NewController(), `{"name": 5, "age": 1}`, ParseOptions{})
	assert.ErrorIs(t, err, gentflow.ErrInvalidJSON, "type mismatch on decode is a parse-class error")
}

func TestController_FencedRoundTrip(t *testing.T) {
	values := []any{
		map[string]any{},
		[]any{},
		map[string]any{"tool": nil, "reply": "It is now known."},
		map[string]any{"tool": "get_time", "arguments": map[string]any{}},
		map[string]any{"nested": map[string]any{"list": []any{float64(1), float64(2.5), "three", true, nil}}},
		[]any{map[string]any{"a": "quote \" inside"}, []any{[]any{}}},
		map[string]any{"unicode": "héllo 世界", "escaped": "line\nbreak\ttab"},
	}
	accepting := schema.MustCompile(map[string]any{"type": []any{"object", "array"}})

	c := NewController()
	for _, v := range values {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		fenced := "```json\n" + string(b) + "\n```"

		got, err := c.Parse(fenced, ParseOptions{Schema: accepting})
		require.NoError(t, err, "value %s", b)
		assert.Equal(t, v, got)
	}
}

func TestParseError_Error(t *testing.T) {
	err := &ParseError{Err: gentflow.ErrValidationFailed, Errors: []string{"/age: want number", "/: missing name"}}
	assert.Equal(t, "gentflow: schema validation failed: /age: want number; /: missing name", err.Error())
	assert.Equal(t, []string{"plain"}, Messages(errors.New("plain")))
	assert.Nil(t, Messages(nil))
}
