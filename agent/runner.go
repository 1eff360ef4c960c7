// Package agent wraps one tool-loop execution as a run with an identity, a persisted status
// lifecycle and an optional summary written back to the session.
//
// A run is persisted as running before the loop starts and receives exactly one terminal
// status. Status and success are distinct: a loop that ends without a reply, or on the
// round budget, is still completed. Only an error or panic escaping the loop marks the run
// failed, and even then Run returns a Result instead of an error.
package agent

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/output"
	"github.com/rickchristie/gentflow/toolloop"
)

// RoundObserver is notified after every tool-loop round of a run.
type RoundObserver func(ctx context.Context, runID string, round int, result *gentflow.ChatResult, report gentflow.RoundReport)

// Options configures one run. Zero values fall back to the tool loop defaults.
type Options struct {
	MaxToolRounds int
	Temperature   *float64
	MaxTokens     int
	Model         string

	// WriteSummaryToMemory stores a short description of the finished run in the session's
	// summary slot.
	WriteSummaryToMemory bool

	OnAfterRound RoundObserver
}

// DefaultOptions returns the tool loop defaults without summary write-back.
func DefaultOptions() Options {
	lo := toolloop.DefaultOptions()
	return Options{
		MaxToolRounds: lo.MaxToolRounds,
		Temperature:   lo.Temperature,
		MaxTokens:     lo.MaxTokens,
	}
}

// Result is the outcome of a run.
type Result struct {
	// Success is true iff the loop produced a reply before exhausting its round budget.
	Success bool `json:"success" yaml:"success"`

	RunID            string   `json:"run_id" yaml:"run_id"`
	Reply            *string  `json:"reply,omitempty" yaml:"reply,omitempty"`
	ToolRounds       int      `json:"tool_rounds" yaml:"tool_rounds"`
	MaxRoundsReached bool     `json:"max_rounds_reached" yaml:"max_rounds_reached"`
	LastRawContent   string   `json:"last_raw_content,omitempty" yaml:"last_raw_content,omitempty"`
	ParseErrors      []string `json:"parse_errors,omitempty" yaml:"parse_errors,omitempty"`

	// Error is set when the run failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	State RunState `json:"state" yaml:"state"`
}

// Runner executes runs. It is safe for concurrent use when its collaborators are.
type Runner struct {
	chat         gentflow.Chatter
	store        gentflow.ContextStore
	parser       *output.Controller
	tools        gentflow.ToolRegistry
	states       StateStore
	hooks        gentflow.Hooks
	timeProvider gentflow.TimeProvider
	newID        func() string
}

// NewRunner creates a Runner. A nil parser selects output.NewController().
func NewRunner(
	chat gentflow.Chatter,
	store gentflow.ContextStore,
	parser *output.Controller,
	tools gentflow.ToolRegistry,
) *Runner {
	if parser == nil {
		parser = output.NewController()
	}
	return &Runner{
		chat:         chat,
		store:        store,
		parser:       parser,
		tools:        tools,
		timeProvider: gentflow.NewDefaultTimeProvider(),
		newID:        NewRunID,
	}
}

// NewRunID returns a fresh "run_" prefixed id.
func NewRunID() string {
	return "run_" + uuid.NewString()
}

// WithStateStore persists run snapshots to s.
func (r *Runner) WithStateStore(s StateStore) *Runner {
	r.states = s
	return r
}

// WithHooks sets the event sink for run and round events.
func (r *Runner) WithHooks(h gentflow.Hooks) *Runner {
	r.hooks = h
	return r
}

// WithTimeProvider sets the clock used for StartedAt and FinishedAt.
func (r *Runner) WithTimeProvider(tp gentflow.TimeProvider) *Runner {
	r.timeProvider = tp
	return r
}

// WithIDGenerator replaces the run id generator.
func (r *Runner) WithIDGenerator(fn func() string) *Runner {
	r.newID = fn
	return r
}

// CloneWithChat returns a copy of the runner that talks to chat instead.
func (r *Runner) CloneWithChat(chat gentflow.Chatter) *Runner {
	clone := *r
	clone.chat = chat
	return &clone
}

// Chat returns the chat capability runs talk to.
func (r *Runner) Chat() gentflow.Chatter {
	return r.chat
}

// StateStore returns the configured state store, or nil.
func (r *Runner) StateStore() StateStore {
	return r.states
}

// Run executes goal against the session and returns the outcome. It never returns a nil
// Result.
func (r *Runner) Run(ctx context.Context, sessionID, goal string, opts Options) *Result {
	runID := r.newID()
	startedAt := r.timeProvider.Now()

	r.persist(RunState{
		RunID:     runID,
		SessionID: sessionID,
		Goal:      goal,
		Status:    gentflow.StatusRunning,
		StartedAt: startedAt,
	})
	if r.hooks != nil {
		r.hooks.FireBeforeRun(ctx, gentflow.BeforeRunEvent{
			RunID:     runID,
			SessionID: sessionID,
			Goal:      goal,
			StartedAt: startedAt,
		})
	}

	res, err := r.execute(ctx, runID, sessionID, goal, startedAt, opts)
	if err != nil {
		finishedAt := r.timeProvider.Now()
		state := RunState{
			RunID:      runID,
			SessionID:  sessionID,
			Goal:       goal,
			Status:     gentflow.StatusFailed,
			StartedAt:  startedAt,
			FinishedAt: &finishedAt,
			Error:      err.Error(),
		}
		r.persist(state)
		res = &Result{
			RunID: runID,
			Error: err.Error(),
			State: state,
		}
	}

	if r.hooks != nil {
		r.hooks.FireAfterRun(ctx, gentflow.AfterRunEvent{
			RunID:            runID,
			SessionID:        sessionID,
			Goal:             goal,
			Status:           res.State.Status,
			Success:          res.Success,
			ToolRounds:       res.ToolRounds,
			MaxRoundsReached: res.MaxRoundsReached,
			Error:            res.Error,
			Duration:         res.State.FinishedAt.Sub(startedAt),
		})
	}
	return res
}

func (r *Runner) execute(
	ctx context.Context,
	runID, sessionID, goal string,
	startedAt time.Time,
	opts Options,
) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()

	loop := toolloop.New(r.chat, r.store, r.tools).WithParser(r.parser)
	lr, err := loop.Run(ctx, sessionID, goal, toolloop.Options{
		MaxToolRounds: opts.MaxToolRounds,
		Temperature:   opts.Temperature,
		MaxTokens:     opts.MaxTokens,
		Model:         opts.Model,
		OnAfterRound:  r.roundObserver(runID, sessionID, opts.OnAfterRound),
	})
	if err != nil {
		return nil, err
	}

	finishedAt := r.timeProvider.Now()
	state := RunState{
		RunID:            runID,
		SessionID:        sessionID,
		Goal:             goal,
		Status:           gentflow.StatusCompleted,
		StartedAt:        startedAt,
		FinishedAt:       &finishedAt,
		ToolRounds:       lr.ToolRounds,
		Reply:            lr.Reply,
		LastRawContent:   lr.LastRawContent,
		MaxRoundsReached: lr.MaxRoundsReached,
	}
	r.persist(state)

	if opts.WriteSummaryToMemory {
		if err := r.store.SetSummary(sessionID, Summary(goal, lr.Reply, lr.ToolRounds)); err != nil {
			return nil, err
		}
	}

	return &Result{
		Success:          lr.Reply != nil && !lr.MaxRoundsReached,
		RunID:            runID,
		Reply:            lr.Reply,
		ToolRounds:       lr.ToolRounds,
		MaxRoundsReached: lr.MaxRoundsReached,
		LastRawContent:   lr.LastRawContent,
		ParseErrors:      lr.ParseErrors,
		State:            state,
	}, nil
}

func (r *Runner) roundObserver(runID, sessionID string, user RoundObserver) toolloop.Observer {
	if user == nil && r.hooks == nil {
		return nil
	}
	return func(ctx context.Context, round int, result *gentflow.ChatResult, report gentflow.RoundReport) {
		if r.hooks != nil {
			r.hooks.FireAfterRound(ctx, gentflow.AfterRoundEvent{
				RunID:     runID,
				SessionID: sessionID,
				Round:     round,
				Result:    result,
				Report:    report,
			})
		}
		if user != nil {
			user(ctx, runID, round, result, report)
		}
	}
}

func (r *Runner) persist(s RunState) {
	if r.states != nil {
		r.states.Set(s)
	}
}

// Summary renders the text written to the session summary slot after a run. The goal is
// cut at 100 characters and the reply at 200.
func Summary(goal string, reply *string, toolRounds int) string {
	replySnippet := "no final reply"
	if reply != nil {
		replySnippet = truncate(*reply, 200)
	}
	return fmt.Sprintf(`Last agent run: goal="%s"; reply="%s"; tool rounds=%d.`,
		truncate(goal, 100), replySnippet, toolRounds)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
