package hooks

import (
	"context"
	"fmt"
	"sync"

	"goa.design/clue/log"

	"github.com/rickchristie/gentflow"
)

// Registry stores hooks in registration order and fans events out to every hook that
// implements the matching interface. It is safe for concurrent use; hooks registered while
// an event is being dispatched only see later events.
type Registry struct {
	mu    sync.RWMutex
	hooks []any
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make([]any, 0)}
}

// Register adds a hook. Nil hooks are ignored.
func (r *Registry) Register(hook any) *Registry {
	if hook == nil {
		return r
	}
	r.mu.Lock()
	r.hooks = append(r.hooks, hook)
	r.mu.Unlock()
	return r
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

func (r *Registry) snapshot() []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]any(nil), r.hooks...)
}

// FireBeforeRun implements gentflow.Hooks.
func (r *Registry) FireBeforeRun(ctx context.Context, event gentflow.BeforeRunEvent) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(gentflow.BeforeRunHook); ok {
			guard(ctx, "before_run", func() { hook.OnBeforeRun(ctx, event) })
		}
	}
}

// FireAfterRound implements gentflow.Hooks.
func (r *Registry) FireAfterRound(ctx context.Context, event gentflow.AfterRoundEvent) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(gentflow.AfterRoundHook); ok {
			guard(ctx, "after_round", func() { hook.OnAfterRound(ctx, event) })
		}
	}
}

// FireAfterRun implements gentflow.Hooks.
func (r *Registry) FireAfterRun(ctx context.Context, event gentflow.AfterRunEvent) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(gentflow.AfterRunHook); ok {
			guard(ctx, "after_run", func() { hook.OnAfterRun(ctx, event) })
		}
	}
}

// FireWorkflowStep implements gentflow.Hooks.
func (r *Registry) FireWorkflowStep(ctx context.Context, event gentflow.WorkflowStepEvent) {
	for _, h := range r.snapshot() {
		if hook, ok := h.(gentflow.WorkflowStepHook); ok {
			guard(ctx, "workflow_step", func() { hook.OnWorkflowStep(ctx, event) })
		}
	}
}

func guard(ctx context.Context, event string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error(ctx, fmt.Errorf("hook panic: %v", rec),
				log.KV{K: "msg", V: "hook panicked"},
				log.KV{K: "event", V: event},
			)
		}
	}()
	fn()
}

// Compile-time check that Registry implements gentflow.Hooks.
var _ gentflow.Hooks = (*Registry)(nil)
