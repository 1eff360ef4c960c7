// Package orchestrator runs multi-step workflows: an ordered list of goals, each executed
// as one agent run in a shared session.
//
// Around the runs it checks permissions, asks for human approval between steps, records an
// audit trail and aggregates cost. Denials and rejections are ordinary unsuccessful
// results with an audit entry, never errors.
package orchestrator

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"goa.design/clue/log"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/agent"
	"github.com/rickchristie/gentflow/approval"
	"github.com/rickchristie/gentflow/audit"
	"github.com/rickchristie/gentflow/cost"
	"github.com/rickchristie/gentflow/permission"
)

const (
	// DefaultActor is the audit actor when Options.ActorID is empty.
	DefaultActor = "system"

	// ResourceLength bounds the goal text stored as an audit resource.
	ResourceLength = 80

	// MsgPermissionDenied is the workflow error when the actor may not run workflows.
	MsgPermissionDenied = "Permission denied: run_workflow"

	// MsgApprovalRejected is the step error when a human stops the workflow.
	MsgApprovalRejected = "Workflow stopped: human did not approve next step"
)

// Step is one goal of a workflow. Label is carried into the result for display.
type Step struct {
	Goal  string `json:"goal" yaml:"goal"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// StepResult is the outcome of one step. When a human rejected the step, Result is a
// synthetic failed result with an empty RunID and ApprovalRequested is true.
type StepResult struct {
	StepIndex         int              `json:"step_index" yaml:"step_index"`
	Goal              string           `json:"goal" yaml:"goal"`
	Label             string           `json:"label,omitempty" yaml:"label,omitempty"`
	Result            *agent.Result    `json:"result" yaml:"result"`
	ApprovalRequested bool             `json:"approval_requested,omitempty" yaml:"approval_requested,omitempty"`
	Approval          *approval.Result `json:"approval,omitempty" yaml:"approval,omitempty"`
}

// WorkflowResult is the outcome of a workflow.
type WorkflowResult struct {
	// Success is true when every executed step succeeded, including when none ran.
	Success    bool         `json:"success" yaml:"success"`
	WorkflowID string       `json:"workflow_id" yaml:"workflow_id"`
	SessionID  string       `json:"session_id" yaml:"session_id"`
	Steps      []StepResult `json:"steps" yaml:"steps"`

	// TotalCost is the session's aggregated cost when a tracker is configured.
	TotalCost *cost.Snapshot `json:"total_cost,omitempty" yaml:"total_cost,omitempty"`

	// Error is the denial message or the first failing step's error.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Err wraps gentflow.ErrPermissionDenied or gentflow.ErrApprovalRejected when the
	// workflow was stopped by a gate.
	Err error `json:"-" yaml:"-"`
}

// Options configures one workflow.
type Options struct {
	ApproveBetweenSteps bool

	// ActorID is checked for permission and recorded in the audit log.
	ActorID string

	// Agent is passed to every run. WriteSummaryToMemory is always forced on so each
	// step sees the previous step's outcome.
	Agent agent.Options
}

// DefaultOptions returns options for the system actor without approval gates.
func DefaultOptions() Options {
	return Options{
		ActorID: DefaultActor,
		Agent:   agent.DefaultOptions(),
	}
}

// Orchestrator runs workflows on top of an agent.Runner. The audit log, permission
// checker, approval provider, cost tracker and hooks are all optional.
type Orchestrator struct {
	runner       *agent.Runner
	audit        audit.Log
	permissions  permission.Checker
	approval     approval.Provider
	costs        *cost.Tracker
	hooks        gentflow.Hooks
	timeProvider gentflow.TimeProvider
	newID        func() string
}

// New creates an Orchestrator.
func New(runner *agent.Runner) *Orchestrator {
	return &Orchestrator{
		runner:       runner,
		timeProvider: gentflow.NewDefaultTimeProvider(),
		newID:        NewWorkflowID,
	}
}

// NewWorkflowID returns a fresh "wf_" prefixed id.
func NewWorkflowID() string {
	return "wf_" + uuid.NewString()
}

// WithAuditLog records workflow events to l.
func (o *Orchestrator) WithAuditLog(l audit.Log) *Orchestrator {
	o.audit = l
	return o
}

// WithPermissions requires actors to hold permission.ActionRunWorkflow.
func (o *Orchestrator) WithPermissions(c permission.Checker) *Orchestrator {
	o.permissions = c
	return o
}

// WithApproval sets the provider consulted between steps.
func (o *Orchestrator) WithApproval(p approval.Provider) *Orchestrator {
	o.approval = p
	return o
}

// WithCostTracker records the cost of every chat call against the workflow's session.
func (o *Orchestrator) WithCostTracker(t *cost.Tracker) *Orchestrator {
	o.costs = t
	return o
}

// WithHooks sets the sink for workflow step events.
func (o *Orchestrator) WithHooks(h gentflow.Hooks) *Orchestrator {
	o.hooks = h
	return o
}

// WithTimeProvider sets the clock used for synthetic run states.
func (o *Orchestrator) WithTimeProvider(tp gentflow.TimeProvider) *Orchestrator {
	o.timeProvider = tp
	return o
}

// WithIDGenerator replaces the workflow id generator.
func (o *Orchestrator) WithIDGenerator(fn func() string) *Orchestrator {
	o.newID = fn
	return o
}

// Run executes steps in order within sessionID. It never returns a nil result.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, steps []Step, opts Options) *WorkflowResult {
	workflowID := o.newID()
	actor := opts.ActorID
	if actor == "" {
		actor = DefaultActor
	}

	if o.permissions != nil && !o.permissions.Allowed(actor, permission.ActionRunWorkflow, "") {
		o.record(ctx, audit.Entry{
			SessionID:  sessionID,
			WorkflowID: workflowID,
			Actor:      actor,
			Action:     audit.ActionWorkflowStart,
			Details:    map[string]any{"error": MsgPermissionDenied},
		})
		return &WorkflowResult{
			WorkflowID: workflowID,
			SessionID:  sessionID,
			Steps:      []StepResult{},
			Error:      MsgPermissionDenied,
			Err:        fmt.Errorf("%w: %s", gentflow.ErrPermissionDenied, permission.ActionRunWorkflow),
		}
	}

	o.record(ctx, audit.Entry{
		SessionID:  sessionID,
		WorkflowID: workflowID,
		Actor:      actor,
		Action:     audit.ActionWorkflowStart,
		Details:    map[string]any{"stepCount": len(steps)},
	})

	runner := o.runner
	if o.costs != nil {
		runner = runner.CloneWithChat(cost.WrapChat(runner.Chat(), o.costs, sessionID))
	}

	runOpts := opts.Agent
	runOpts.WriteSummaryToMemory = true

	results := make([]StepResult, 0, len(steps))
	var stopErr error
	for i, step := range steps {
		if opts.ApproveBetweenSteps && i > 0 && o.approval != nil {
			answer := o.requestApproval(ctx, sessionID, workflowID, actor, i, step, results[i-1].Result.RunID)
			if !answer.Approved {
				results = append(results, o.rejectedStep(sessionID, i, step, answer))
				stopErr = fmt.Errorf("%w at step %d", gentflow.ErrApprovalRejected, i)
				break
			}
		}

		o.record(ctx, audit.Entry{
			SessionID:  sessionID,
			WorkflowID: workflowID,
			StepIndex:  audit.Step(i),
			Actor:      actor,
			Action:     audit.ActionWorkflowStepStart,
			Resource:   truncate(step.Goal, ResourceLength),
		})

		res := runner.Run(ctx, sessionID, step.Goal, runOpts)

		details := map[string]any{
			"success":    res.Success,
			"toolRounds": res.ToolRounds,
		}
		if res.Error != "" {
			details["error"] = res.Error
		}
		o.record(ctx, audit.Entry{
			SessionID:  sessionID,
			RunID:      res.RunID,
			WorkflowID: workflowID,
			StepIndex:  audit.Step(i),
			Actor:      actor,
			Action:     audit.ActionWorkflowStepEnd,
			Resource:   truncate(step.Goal, ResourceLength),
			Details:    details,
		})

		if o.hooks != nil {
			o.hooks.FireWorkflowStep(ctx, gentflow.WorkflowStepEvent{
				WorkflowID: workflowID,
				SessionID:  sessionID,
				RunID:      res.RunID,
				StepIndex:  i,
				Goal:       step.Goal,
				Success:    res.Success,
				ToolRounds: res.ToolRounds,
				Error:      res.Error,
			})
		}

		results = append(results, StepResult{
			StepIndex: i,
			Goal:      step.Goal,
			Label:     step.Label,
			Result:    res,
		})
	}

	o.record(ctx, audit.Entry{
		SessionID:  sessionID,
		WorkflowID: workflowID,
		Actor:      actor,
		Action:     audit.ActionWorkflowEnd,
		Details: map[string]any{
			"stepsCompleted": len(results),
			"totalSteps":     len(steps),
		},
	})

	out := &WorkflowResult{
		Success:    true,
		WorkflowID: workflowID,
		SessionID:  sessionID,
		Steps:      results,
		Err:        stopErr,
	}
	for _, r := range results {
		if !r.Result.Success {
			out.Success = false
			out.Error = r.Result.Error
			break
		}
	}
	if o.costs != nil {
		snap := o.costs.SessionCost(sessionID)
		out.TotalCost = &snap
	}
	return out
}

func (o *Orchestrator) requestApproval(
	ctx context.Context,
	sessionID, workflowID, actor string,
	index int,
	step Step,
	previousRunID string,
) approval.Result {
	o.record(ctx, audit.Entry{
		SessionID:  sessionID,
		WorkflowID: workflowID,
		StepIndex:  audit.Step(index),
		Actor:      actor,
		Action:     audit.ActionHumanApprovalRequest,
		Resource:   truncate(step.Goal, ResourceLength),
		Details: map[string]any{
			"reason":  approval.ReasonStepContinue,
			"payload": map[string]any{"goal": step.Goal},
		},
	})

	answer, err := o.approval.RequestApproval(ctx, approval.Request{
		RunID:      previousRunID,
		WorkflowID: workflowID,
		StepIndex:  audit.Step(index),
		Reason:     approval.ReasonStepContinue,
		Payload:    map[string]any{"goal": step.Goal, "previousStep": previousRunID},
	})
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "approval failed"}, log.KV{K: "workflow_id", V: workflowID})
		answer = approval.Result{Comment: "approval error: " + err.Error()}
	}

	details := map[string]any{"approved": answer.Approved}
	if answer.Comment != "" {
		details["comment"] = answer.Comment
	}
	o.record(ctx, audit.Entry{
		SessionID:  sessionID,
		WorkflowID: workflowID,
		StepIndex:  audit.Step(index),
		Actor:      actor,
		Action:     audit.ActionHumanApprovalResult,
		Details:    details,
	})
	return answer
}

func (o *Orchestrator) rejectedStep(sessionID string, index int, step Step, answer approval.Result) StepResult {
	now := o.timeProvider.Now()
	state := agent.RunState{
		SessionID:  sessionID,
		Goal:       step.Goal,
		Status:     gentflow.StatusFailed,
		StartedAt:  now,
		FinishedAt: &now,
		Error:      MsgApprovalRejected,
	}
	return StepResult{
		StepIndex: index,
		Goal:      step.Goal,
		Label:     step.Label,
		Result: &agent.Result{
			Error: MsgApprovalRejected,
			State: state,
		},
		ApprovalRequested: true,
		Approval:          &answer,
	}
}

func (o *Orchestrator) record(ctx context.Context, e audit.Entry) {
	if o.audit == nil {
		return
	}
	if _, err := o.audit.Append(e); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "audit append failed"}, log.KV{K: "action", V: string(e.Action)})
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
