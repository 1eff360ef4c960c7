// Package tt holds test doubles shared across package tests.
package tt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rickchristie/gentflow"
)

// -----------------------------------------------------------------------------
// ScriptedChat - implements gentflow.Chatter with queued responses
// -----------------------------------------------------------------------------

type scriptedReply struct {
	result *gentflow.ChatResult
	err    error
	panic  any
}

// ScriptedChat is a configurable mock that implements gentflow.Chatter.
// Each Chat call consumes the next queued reply. When the queue is exhausted the last reply
// is repeated, so a single AddResponse scripts a model that always says the same thing.
type ScriptedChat struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   int

	// CapturedRequests stores every request in call order.
	CapturedRequests []gentflow.ChatRequest
}

// NewScriptedChat creates an empty ScriptedChat.
func NewScriptedChat() *ScriptedChat {
	return &ScriptedChat{}
}

// AddResponse queues a plain content response.
func (m *ScriptedChat) AddResponse(content string) *ScriptedChat {
	return m.AddResult(&gentflow.ChatResult{Content: content})
}

// AddJSON queues a response whose content is v encoded as JSON.
func (m *ScriptedChat) AddJSON(v any) *ScriptedChat {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return m.AddResponse(string(b))
}

// AddToolCall queues a tool-call decision.
func (m *ScriptedChat) AddToolCall(tool string, args map[string]any) *ScriptedChat {
	if args == nil {
		args = map[string]any{}
	}
	return m.AddJSON(map[string]any{"tool": tool, "arguments": args})
}

// AddReply queues a terminal decision.
func (m *ScriptedChat) AddReply(reply string) *ScriptedChat {
	return m.AddJSON(map[string]any{"tool": nil, "reply": reply})
}

// AddResult queues a full ChatResult, e.g. one carrying a cost.
func (m *ScriptedChat) AddResult(result *gentflow.ChatResult) *ScriptedChat {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, scriptedReply{result: result})
	return m
}

// AddError queues an error.
func (m *ScriptedChat) AddError(err error) *ScriptedChat {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, scriptedReply{err: err})
	return m
}

// AddPanic queues a panic with value v.
func (m *ScriptedChat) AddPanic(v any) *ScriptedChat {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, scriptedReply{panic: v})
	return m
}

// CallCount returns the number of Chat calls.
func (m *ScriptedChat) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Chat implements gentflow.Chatter.
func (m *ScriptedChat) Chat(ctx context.Context, req gentflow.ChatRequest) (*gentflow.ChatResult, error) {
	m.mu.Lock()
	m.CapturedRequests = append(m.CapturedRequests, req)
	if len(m.replies) == 0 {
		m.calls++
		m.mu.Unlock()
		return nil, fmt.Errorf("tt: no scripted reply for call %d", m.calls)
	}
	idx := m.calls
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	reply := m.replies[idx]
	m.calls++
	m.mu.Unlock()

	if reply.panic != nil {
		panic(reply.panic)
	}
	if reply.err != nil {
		return nil, reply.err
	}
	cp := *reply.result
	return &cp, nil
}

// Compile-time check that ScriptedChat implements gentflow.Chatter.
var _ gentflow.Chatter = (*ScriptedChat)(nil)

// -----------------------------------------------------------------------------
// StubTool - implements gentflow.Tool
// -----------------------------------------------------------------------------

// StubTool is a gentflow.Tool whose behavior is a plain function. It records the arguments
// of every call.
type StubTool struct {
	name        string
	description string
	schema      map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)

	mu    sync.Mutex
	Calls []map[string]any
}

// NewStubTool creates a StubTool.
func NewStubTool(name, description string, fn func(ctx context.Context, args map[string]any) (any, error)) *StubTool {
	return &StubTool{name: name, description: description, fn: fn}
}

// WithSchema sets the parameter schema.
func (s *StubTool) WithSchema(schema map[string]any) *StubTool {
	s.schema = schema
	return s
}

// Name implements gentflow.Tool.
func (s *StubTool) Name() string { return s.name }

// Description implements gentflow.Tool.
func (s *StubTool) Description() string { return s.description }

// ParameterSchema implements gentflow.Tool.
func (s *StubTool) ParameterSchema() map[string]any { return s.schema }

// Execute implements gentflow.Tool.
func (s *StubTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, args)
	s.mu.Unlock()
	return s.fn(ctx, args)
}

// CallCount returns the number of Execute calls.
func (s *StubTool) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Compile-time check that StubTool implements gentflow.Tool.
var _ gentflow.Tool = (*StubTool)(nil)

// -----------------------------------------------------------------------------
// RecordingHooks - implements gentflow.Hooks
// -----------------------------------------------------------------------------

// RecordingHooks captures every event fired at it.
type RecordingHooks struct {
	mu            sync.Mutex
	BeforeRuns    []gentflow.BeforeRunEvent
	AfterRounds   []gentflow.AfterRoundEvent
	AfterRuns     []gentflow.AfterRunEvent
	WorkflowSteps []gentflow.WorkflowStepEvent
}

// FireBeforeRun implements gentflow.Hooks.
func (h *RecordingHooks) FireBeforeRun(ctx context.Context, e gentflow.BeforeRunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.BeforeRuns = append(h.BeforeRuns, e)
}

// FireAfterRound implements gentflow.Hooks.
func (h *RecordingHooks) FireAfterRound(ctx context.Context, e gentflow.AfterRoundEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AfterRounds = append(h.AfterRounds, e)
}

// FireAfterRun implements gentflow.Hooks.
func (h *RecordingHooks) FireAfterRun(ctx context.Context, e gentflow.AfterRunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.AfterRuns = append(h.AfterRuns, e)
}

// FireWorkflowStep implements gentflow.Hooks.
func (h *RecordingHooks) FireWorkflowStep(ctx context.Context, e gentflow.WorkflowStepEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.WorkflowSteps = append(h.WorkflowSteps, e)
}

// Compile-time check that RecordingHooks implements gentflow.Hooks.
var _ gentflow.Hooks = (*RecordingHooks)(nil)
