// Package metrics exposes run, round and workflow counters as Prometheus metrics.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rickchristie/gentflow"
)

// PrometheusHook records hook events as Prometheus metrics. Register it with a
// hooks.Registry.
type PrometheusHook struct {
	roundsTotal    *prometheus.CounterVec
	toolCallsTotal *prometheus.CounterVec
	tokensTotal    *prometheus.CounterVec
	costCentsTotal *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	runToolRounds  prometheus.Histogram
	stepsTotal     *prometheus.CounterVec
	runsInFlight   prometheus.Gauge
}

// NewPrometheusHook registers the metrics with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default promhttp handler.
func NewPrometheusHook(reg prometheus.Registerer) *PrometheusHook {
	f := promauto.With(reg)
	return &PrometheusHook{
		roundsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gentflow_rounds_total",
				Help: "Tool-loop rounds by outcome kind",
			},
			[]string{"kind"},
		),
		toolCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gentflow_tool_calls_total",
				Help: "Tool invocations requested by the model",
			},
			[]string{"tool"},
		),
		tokensTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gentflow_tokens_total",
				Help: "Tokens reported by providers",
			},
			[]string{"model", "type"},
		),
		costCentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gentflow_cost_cents_total",
				Help: "Estimated chat cost in cents",
			},
			[]string{"model", "provider"},
		),
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gentflow_runs_total",
				Help: "Finished agent runs by status and success",
			},
			[]string{"status", "success"},
		),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gentflow_run_duration_seconds",
			Help:    "Wall time of agent runs",
			Buckets: prometheus.DefBuckets,
		}),
		runToolRounds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gentflow_run_tool_rounds",
			Help:    "Tool rounds used per run",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		}),
		stepsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gentflow_workflow_steps_total",
				Help: "Executed workflow steps by success",
			},
			[]string{"success"},
		),
		runsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "gentflow_runs_in_flight",
			Help: "Agent runs currently executing",
		}),
	}
}

// OnBeforeRun implements gentflow.BeforeRunHook.
func (p *PrometheusHook) OnBeforeRun(ctx context.Context, e gentflow.BeforeRunEvent) {
	p.runsInFlight.Inc()
}

// OnAfterRound implements gentflow.AfterRoundHook.
func (p *PrometheusHook) OnAfterRound(ctx context.Context, e gentflow.AfterRoundEvent) {
	p.roundsTotal.WithLabelValues(string(e.Report.Kind)).Inc()
	if e.Report.Kind == gentflow.ReportToolCall {
		p.toolCallsTotal.WithLabelValues(e.Report.ToolName).Inc()
	}

	res := e.Result
	if res == nil {
		return
	}
	if res.Usage != nil {
		p.tokensTotal.WithLabelValues(res.Model, "input").Add(float64(res.Usage.InputTokens))
		p.tokensTotal.WithLabelValues(res.Model, "output").Add(float64(res.Usage.OutputTokens))
	}
	if res.Cost != nil {
		p.costCentsTotal.WithLabelValues(res.Model, res.Provider).Add(res.Cost.TotalCents)
	}
}

// OnAfterRun implements gentflow.AfterRunHook.
func (p *PrometheusHook) OnAfterRun(ctx context.Context, e gentflow.AfterRunEvent) {
	p.runsInFlight.Dec()
	p.runsTotal.WithLabelValues(string(e.Status), strconv.FormatBool(e.Success)).Inc()
	p.runDuration.Observe(e.Duration.Seconds())
	p.runToolRounds.Observe(float64(e.ToolRounds))
}

// OnWorkflowStep implements gentflow.WorkflowStepHook.
func (p *PrometheusHook) OnWorkflowStep(ctx context.Context, e gentflow.WorkflowStepEvent) {
	p.stepsTotal.WithLabelValues(strconv.FormatBool(e.Success)).Inc()
}

var (
	_ gentflow.BeforeRunHook    = (*PrometheusHook)(nil)
	_ gentflow.AfterRoundHook   = (*PrometheusHook)(nil)
	_ gentflow.AfterRunHook     = (*PrometheusHook)(nil)
	_ gentflow.WorkflowStepHook = (*PrometheusHook)(nil)
)
