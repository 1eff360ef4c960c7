package hooks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rickchristie/gentflow"
)

// LoggerHook writes every event as a timestamped header followed by a YAML body. Content is
// never truncated, which makes it useful for inspecting a model's behavior in a terminal.
type LoggerHook struct {
	mu   sync.Mutex
	out  io.Writer
	time gentflow.TimeProvider
}

// NewLoggerHook creates a LoggerHook writing to w.
func NewLoggerHook(w io.Writer) *LoggerHook {
	return &LoggerHook{out: w, time: gentflow.NewDefaultTimeProvider()}
}

// WithTimeProvider sets the clock used for event headers.
func (h *LoggerHook) WithTimeProvider(tp gentflow.TimeProvider) *LoggerHook {
	h.time = tp
	return h
}

func (h *LoggerHook) write(name string, body any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(h.out, "\n>>> [%s]: %s\n", name, h.time.Now().Format("2006-01-02 15:04:05.000"))
	data, err := yaml.Marshal(body)
	if err != nil {
		fmt.Fprintf(h.out, "(failed to marshal: %v)\n", err)
		return
	}
	fmt.Fprint(h.out, string(data))
}

// OnBeforeRun logs the run id and goal.
func (h *LoggerHook) OnBeforeRun(ctx context.Context, e gentflow.BeforeRunEvent) {
	h.write("BeforeRun", map[string]any{
		"run_id":     e.RunID,
		"session_id": e.SessionID,
		"goal":       e.Goal,
	})
}

// OnAfterRound logs the round report and, when present, the raw model content.
func (h *LoggerHook) OnAfterRound(ctx context.Context, e gentflow.AfterRoundEvent) {
	body := map[string]any{
		"run_id": e.RunID,
		"report": e.Report,
	}
	if e.Result != nil {
		body["content"] = e.Result.Content
		if e.Result.Usage != nil {
			body["usage"] = e.Result.Usage
		}
	}
	h.write(fmt.Sprintf("AfterRound %d", e.Round), body)
}

// OnAfterRun logs the terminal status of a run.
func (h *LoggerHook) OnAfterRun(ctx context.Context, e gentflow.AfterRunEvent) {
	body := map[string]any{
		"run_id":      e.RunID,
		"status":      string(e.Status),
		"success":     e.Success,
		"tool_rounds": e.ToolRounds,
		"duration":    e.Duration.String(),
	}
	if e.MaxRoundsReached {
		body["max_rounds_reached"] = true
	}
	if e.Error != "" {
		body["error"] = e.Error
	}
	h.write("AfterRun", body)
}

// OnWorkflowStep logs one orchestrated step.
func (h *LoggerHook) OnWorkflowStep(ctx context.Context, e gentflow.WorkflowStepEvent) {
	body := map[string]any{
		"workflow_id": e.WorkflowID,
		"run_id":      e.RunID,
		"goal":        e.Goal,
		"success":     e.Success,
		"tool_rounds": e.ToolRounds,
	}
	if e.Error != "" {
		body["error"] = e.Error
	}
	h.write(fmt.Sprintf("WorkflowStep %d", e.StepIndex), body)
}

var (
	_ gentflow.BeforeRunHook    = (*LoggerHook)(nil)
	_ gentflow.AfterRoundHook   = (*LoggerHook)(nil)
	_ gentflow.AfterRunHook     = (*LoggerHook)(nil)
	_ gentflow.WorkflowStepHook = (*LoggerHook)(nil)
)
