package toolchain

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/rickchristie/gentflow"
)

// Func is a Tool backed by a typed function. Arguments are decoded into I through a JSON
// round trip, with time.Time and time.Duration fields accepted as strings.
type Func[I, O any] struct {
	name        string
	description string
	schema      map[string]any
	fn          func(ctx context.Context, input I) (O, error)
}

// NewFunc creates a Func. Pass a nil schema for tools without arguments.
func NewFunc[I, O any](
	name, description string,
	schema map[string]any,
	fn func(ctx context.Context, input I) (O, error),
) *Func[I, O] {
	return &Func[I, O]{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}

// Name implements gentflow.Tool.
func (t *Func[I, O]) Name() string {
	return t.name
}

// Description implements gentflow.Tool.
func (t *Func[I, O]) Description() string {
	return t.description
}

// ParameterSchema implements gentflow.Tool.
func (t *Func[I, O]) ParameterSchema() map[string]any {
	return t.schema
}

// Execute implements gentflow.Tool.
func (t *Func[I, O]) Execute(ctx context.Context, args map[string]any) (any, error) {
	input, err := DecodeArgs[I](args)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", gentflow.ErrInvalidToolArgs, t.name, err)
	}
	return t.fn(ctx, input)
}

// DecodeArgs converts decoded JSON arguments into a value of type I.
func DecodeArgs[I any](args map[string]any) (I, error) {
	var input I
	inputType := reflect.TypeOf(input)
	if inputType == nil {
		// I is an interface type such as any; hand over the raw map.
		if v, ok := any(args).(I); ok {
			return v, nil
		}
		return input, nil
	}

	structType := inputType
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	converted := coerceArgs(args, structType)

	data, err := json.Marshal(converted)
	if err != nil {
		return input, fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("failed to decode args into %s: %w", inputType, err)
	}
	return input, nil
}

// Compile-time check that Func implements gentflow.Tool.
var _ gentflow.Tool = (*Func[struct{}, string])(nil)
