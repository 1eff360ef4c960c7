// Package toolchain holds the tools a model may call.
//
// A Registry maps names to gentflow.Tool values. Tools that declare a parameter schema have
// their arguments validated before execution, so the tool body only sees well-formed input.
// NewFunc adapts a typed Go function into a Tool.
package toolchain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/schema"
)

type entry struct {
	tool   gentflow.Tool
	schema *schema.Schema
}

// Registry is a name to tool map. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

// Register adds tool, replacing any tool with the same name. The name is trimmed; a blank
// name or a parameter schema that does not compile fails with gentflow.ErrInvalidTool.
func (r *Registry) Register(tool gentflow.Tool) error {
	if tool == nil {
		return fmt.Errorf("%w: nil tool", gentflow.ErrInvalidTool)
	}
	name := strings.TrimSpace(tool.Name())
	if name == "" {
		return fmt.Errorf("%w: tool name is required", gentflow.ErrInvalidTool)
	}
	compiled, err := schema.Compile(tool.ParameterSchema())
	if err != nil {
		return fmt.Errorf("%w: %s: %v", gentflow.ErrInvalidTool, name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = entry{tool: tool, schema: compiled}
	return nil
}

// MustRegister is like Register but panics on error. It returns the registry for chaining.
func (r *Registry) MustRegister(tools ...gentflow.Tool) *Registry {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (gentflow.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[strings.TrimSpace(name)]
	return e.tool, ok
}

// List returns the registered tools in registration order.
func (r *Registry) List() []gentflow.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]gentflow.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool)
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute validates args against the tool's schema and runs it. Unknown names fail with
// gentflow.ErrToolNotFound, schema violations with gentflow.ErrInvalidToolArgs; the tool's
// own error is returned unchanged.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[strings.TrimSpace(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", gentflow.ErrToolNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := e.schema.Validate(args); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", gentflow.ErrInvalidToolArgs, name, err)
	}
	return e.tool.Execute(ctx, args)
}

// Compile-time check that Registry implements gentflow.ToolRegistry.
var _ gentflow.ToolRegistry = (*Registry)(nil)
