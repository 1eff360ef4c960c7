package gentflow

import (
	"context"
	"time"
)

// RunStatus is the lifecycle status of an agent run. A run starts as StatusRunning and
// receives exactly one terminal status.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// ReportKind classifies how one tool-loop round was processed.
type ReportKind string

const (
	ReportParseFailed ReportKind = "parse_failed"
	ReportFinalReply  ReportKind = "final_reply"
	ReportToolCall    ReportKind = "tool_call"
)

// RoundReport describes the outcome of a single round.
type RoundReport struct {
	Kind ReportKind `json:"kind" yaml:"kind"`

	// Errors holds the parser messages for ReportParseFailed.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Reply is set for ReportFinalReply.
	Reply string `json:"reply,omitempty" yaml:"reply,omitempty"`

	// ToolName, Arguments and ResultSnippet are set for ReportToolCall. The snippet is
	// truncated to 200 characters.
	ToolName      string         `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	Arguments     map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	ResultSnippet string         `json:"result_snippet,omitempty" yaml:"result_snippet,omitempty"`
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

// BeforeRunEvent is fired after a run's running state has been persisted.
type BeforeRunEvent struct {
	RunID     string
	SessionID string
	Goal      string
	StartedAt time.Time
}

// AfterRoundEvent is fired after every tool-loop round.
type AfterRoundEvent struct {
	RunID     string
	SessionID string
	Round     int
	Result    *ChatResult
	Report    RoundReport
}

// AfterRunEvent is fired once a run reached its terminal status.
type AfterRunEvent struct {
	RunID            string
	SessionID        string
	Goal             string
	Status           RunStatus
	Success          bool
	ToolRounds       int
	MaxRoundsReached bool
	Error            string
	Duration         time.Duration
}

// WorkflowStepEvent is fired by the orchestrator after each executed step.
type WorkflowStepEvent struct {
	WorkflowID string
	SessionID  string
	RunID      string
	StepIndex  int
	Goal       string
	Success    bool
	ToolRounds int
	Error      string
}

// -----------------------------------------------------------------------------
// Hook interfaces
// -----------------------------------------------------------------------------

// BeforeRunHook is implemented by hooks that observe run starts.
type BeforeRunHook interface {
	OnBeforeRun(ctx context.Context, event BeforeRunEvent)
}

// AfterRoundHook is implemented by hooks that observe tool-loop rounds.
type AfterRoundHook interface {
	OnAfterRound(ctx context.Context, event AfterRoundEvent)
}

// AfterRunHook is implemented by hooks that observe run completion.
type AfterRunHook interface {
	OnAfterRun(ctx context.Context, event AfterRunEvent)
}

// WorkflowStepHook is implemented by hooks that observe orchestrated workflow steps.
type WorkflowStepHook interface {
	OnWorkflowStep(ctx context.Context, event WorkflowStepEvent)
}

// Hooks is the event sink used by the runner and the orchestrator. hooks.Registry is the
// standard implementation.
type Hooks interface {
	FireBeforeRun(ctx context.Context, event BeforeRunEvent)
	FireAfterRound(ctx context.Context, event AfterRoundEvent)
	FireAfterRun(ctx context.Context, event AfterRunEvent)
	FireWorkflowStep(ctx context.Context, event WorkflowStepEvent)
}
