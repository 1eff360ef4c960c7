// Package hooks dispatches run, round and workflow events to observers.
//
// A hook implements any combination of the event interfaces declared in the root package
// and only receives the events it implements:
//   - [gentflow.BeforeRunHook] - a run's running state was persisted
//   - [gentflow.AfterRoundHook] - one tool-loop round finished
//   - [gentflow.AfterRunHook] - a run reached its terminal status
//   - [gentflow.WorkflowStepHook] - the orchestrator finished a step
//
// # Creating a Hook
//
//	type StepCounter struct{ steps int }
//
//	func (h *StepCounter) OnWorkflowStep(ctx context.Context, e gentflow.WorkflowStepEvent) {
//	    h.steps++
//	}
//
// # Registering Hooks
//
//	registry := hooks.NewRegistry().
//	    Register(hooks.NewLoggerHook(os.Stderr)).
//	    Register(metrics.NewPrometheusHook(prometheus.DefaultRegisterer))
//
//	runner := agent.NewRunner(gw, store, nil, tools).WithHooks(registry)
//	orch := orchestrator.New(runner).WithHooks(registry)
//
// A panicking hook is logged and skipped; the remaining hooks still receive the event and
// the run continues.
package hooks
