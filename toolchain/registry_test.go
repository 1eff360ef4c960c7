package toolchain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/schema"
)

type addInput struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

func newAdd() *Func[addInput, float64] {
	return NewFunc(
		"add",
		"Adds two numbers",
		schema.Object(map[string]*schema.Property{
			"a": schema.Number("First addend"),
			"b": schema.Number("Second addend"),
		}, "a", "b"),
		func(ctx context.Context, in addInput) (float64, error) {
			return in.A + in.B, nil
		},
	)
}

func newGetTime() *Func[struct{}, string] {
	return NewFunc("get_time", "Returns the current time", nil,
		func(ctx context.Context, _ struct{}) (string, error) {
			return "2025-01-01T00:00:00Z", nil
		})
}

func TestRegistry_Register(t *testing.T) {
	type expected struct {
		err error
	}

	tests := []struct {
		name     string
		input    gentflow.Tool
		expected expected
	}{
		{name: "valid tool", input: newAdd(), expected: expected{}},
		{name: "no schema", input: newGetTime(), expected: expected{}},
		{
			name:     "blank name",
			input:    NewFunc("   ", "nothing", nil, func(context.Context, struct{}) (string, error) { return "", nil }),
			expected: expected{err: gentflow.ErrInvalidTool},
		},
		{
			name: "schema does not compile",
			input: NewFunc("bad", "bad schema", map[string]any{"type": 7},
				func(context.Context, struct{}) (string, error) { return "", nil }),
			expected: expected{err: gentflow.ErrInvalidTool},
		},
		{name: "nil tool", input: nil, expected: expected{err: gentflow.ErrInvalidTool}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.input)
			if tt.expected.err != nil {
				assert.ErrorIs(t, err, tt.expected.err)
				assert.Equal(t, 0, r.Len())
				return
			}
			require.NoError(t, err)
			got, ok := r.Get(tt.input.Name())
			require.True(t, ok)
			assert.Same(t, tt.input, got)
		})
	}
}

func TestRegistry_TrimsNameAndOverwrites(t *testing.T) {
	r := NewRegistry()
	first := NewFunc(" echo ", "first", nil, func(context.Context, struct{}) (string, error) { return "1", nil })
	second := NewFunc("echo", "second", nil, func(context.Context, struct{}) (string, error) { return "2", nil })

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(newAdd()))
	require.NoError(t, r.Register(second))

	assert.Equal(t, 2, r.Len())
	tool, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "second", tool.Description())

	names := []string{}
	for _, tool := range r.List() {
		names = append(names, tool.Description())
	}
	assert.Equal(t, []string{"second", "Adds two numbers"}, names, "overwrite keeps the original slot")

	out, err := r.Execute(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", out)
}

func TestRegistry_Execute(t *testing.T) {
	type input struct {
		name string
		args map[string]any
	}

	type expected struct {
		result any
		err    error
	}

	boom := errors.New("boom")
	r := NewRegistry().MustRegister(
		newAdd(),
		newGetTime(),
		NewFunc("fail", "always fails", nil, func(context.Context, struct{}) (string, error) { return "", boom }),
	)

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "typed tool",
			input:    input{name: "add", args: map[string]any{"a": 2, "b": 3.5}},
			expected: expected{result: 5.5},
		},
		{
			name:     "no args tool with nil args",
			input:    input{name: "get_time", args: nil},
			expected: expected{result: "2025-01-01T00:00:00Z"},
		},
		{
			name:     "unknown tool",
			input:    input{name: "nope"},
			expected: expected{err: gentflow.ErrToolNotFound},
		},
		{
			name:     "missing required argument",
			input:    input{name: "add", args: map[string]any{"a": 1}},
			expected: expected{err: gentflow.ErrInvalidToolArgs},
		},
		{
			name:     "wrong argument type",
			input:    input{name: "add", args: map[string]any{"a": "one", "b": 2}},
			expected: expected{err: gentflow.ErrInvalidToolArgs},
		},
		{
			name:     "tool error propagates unchanged",
			input:    input{name: "fail"},
			expected: expected{err: boom},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Execute(context.Background(), tt.input.name, tt.input.args)
			if tt.expected.err != nil {
				assert.ErrorIs(t, err, tt.expected.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected.result, got)
		})
	}
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry().MustRegister(NewFunc("", "", nil, func(context.Context, struct{}) (string, error) { return "", nil }))
	})
}

func TestDecodeArgs(t *testing.T) {
	type window struct {
		Start time.Time     `json:"start"`
		Span  time.Duration `json:"span"`
	}
	type query struct {
		Term    string   `json:"term,omitempty"`
		Windows []window `json:"windows"`
		Until   *time.Time
	}

	got, err := DecodeArgs[query](map[string]any{
		"term": "cpu",
		"windows": []any{
			map[string]any{"start": "2025-02-15", "span": "1h30m"},
			map[string]any{"start": "2025-02-15 10:00", "span": "45s"},
		},
		"until": "2025-03-01T12:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, "cpu", got.Term)
	require.Len(t, got.Windows, 2)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), got.Windows[0].Start)
	assert.Equal(t, 90*time.Minute, got.Windows[0].Span)
	assert.Equal(t, time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC), got.Windows[1].Start)
	assert.Equal(t, 45*time.Second, got.Windows[1].Span)
	require.NotNil(t, got.Until)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), got.Until.UTC())

	raw, err := DecodeArgs[map[string]any](map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1.0}, raw)

	anyArgs, err := DecodeArgs[any](map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1.0}, anyArgs)

	_, err = DecodeArgs[addInput](map[string]any{"a": "not a number"})
	assert.Error(t, err)
}
