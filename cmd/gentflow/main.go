// Command gentflow runs goals as an orchestrated workflow against the configured model
// providers and prints the result, audit trail and session cost as YAML.
//
//	gentflow [-config gentflow.yaml] [-approve] [-metrics-addr :9090] "goal one" "goal two"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tmc/langchaingo/llms/openai"
	"goa.design/clue/log"
	"gopkg.in/yaml.v3"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/agent"
	"github.com/rickchristie/gentflow/approval"
	"github.com/rickchristie/gentflow/audit"
	"github.com/rickchristie/gentflow/config"
	"github.com/rickchristie/gentflow/contextstore"
	"github.com/rickchristie/gentflow/cost"
	"github.com/rickchristie/gentflow/gateway"
	"github.com/rickchristie/gentflow/hooks"
	"github.com/rickchristie/gentflow/metrics"
	"github.com/rickchristie/gentflow/models"
	"github.com/rickchristie/gentflow/orchestrator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath  string
	approve     bool
	metricsAddr string
	auditFile   string
	sessionID   string
	actorID     string
	verbose     bool
	goals       []string
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("gentflow", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&f.approve, "approve", false, "ask for human approval between steps")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&f.auditFile, "audit-file", "", "append audit entries to this JSONL file")
	fs.StringVar(&f.sessionID, "session", "", "session id (generated when empty)")
	fs.StringVar(&f.actorID, "actor", orchestrator.DefaultActor, "actor checked against configured permissions")
	fs.BoolVar(&f.verbose, "v", false, "log every run and round to stderr as YAML")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	f.goals = fs.Args()
	if len(f.goals) == 0 {
		return flags{}, errors.New("at least one goal is required")
	}
	return f, nil
}

func run() error {
	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	storeCfg, err := cfg.ContextConfig()
	if err != nil {
		return err
	}
	store := contextstore.New(storeCfg)
	sessionID := store.CreateSession(f.sessionID)

	registry := hooks.NewRegistry()
	if f.verbose {
		registry.Register(hooks.NewLoggerHook(os.Stderr))
	}
	if f.metricsAddr != "" {
		registry.Register(metrics.NewPrometheusHook(prometheus.DefaultRegisterer))
		shutdown := serveMetrics(ctx, f.metricsAddr)
		defer shutdown()
	}

	runner := agent.NewRunner(gw, store, nil, demoTools(gentflow.NewDefaultTimeProvider())).
		WithStateStore(agent.NewMemoryStateStore()).
		WithHooks(registry)

	auditLog := audit.NewMemoryLog()
	if f.auditFile != "" {
		file, err := os.OpenFile(f.auditFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		defer file.Close()
		sink := audit.NewJSONLWriter(file)
		defer sink.Close()
		auditLog.WithSink(sink)
	}

	tracker := cost.NewTracker()
	orch := orchestrator.New(runner).
		WithAuditLog(auditLog).
		WithCostTracker(tracker).
		WithHooks(registry)
	if len(cfg.Permissions.Actors) > 0 {
		orch.WithPermissions(cfg.PermissionChecker())
	}

	opts := orchestrator.DefaultOptions()
	opts.ActorID = f.actorID
	opts.Agent = cfg.AgentOptions()
	if f.approve {
		console, err := approval.NewReadlineConsole()
		if err != nil {
			return err
		}
		defer console.Close()
		orch.WithApproval(console)
		opts.ApproveBetweenSteps = true
	}

	steps := make([]orchestrator.Step, 0, len(f.goals))
	for i, goal := range f.goals {
		steps = append(steps, orchestrator.Step{Goal: goal, Label: fmt.Sprintf("step %d", i+1)})
	}

	log.Info(ctx,
		log.KV{K: "msg", V: "starting workflow"},
		log.KV{K: "session_id", V: sessionID},
		log.KV{K: "model", V: cfg.DefaultModel},
		log.KV{K: "steps", V: len(steps)},
	)
	res := orch.Run(ctx, sessionID, steps, opts)

	if err := printReport(os.Stdout, report{
		Workflow:    res,
		Audit:       auditLog.ListByWorkflow(res.WorkflowID),
		SessionCost: tracker.SessionCost(sessionID),
	}); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("workflow %s failed: %s", res.WorkflowID, res.Error)
	}
	return nil
}

// newGateway registers one OpenAI-compatible langchaingo client per keyed provider.
func newGateway(cfg config.Config) (*gateway.Gateway, error) {
	gw := gateway.New(cfg.GatewayConfig())
	for _, p := range cfg.KeyedProviders() {
		llm, err := openai.New(
			openai.WithToken(p.APIKey),
			openai.WithBaseURL(p.BaseURL),
			openai.WithModel(p.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create %s client: %w", p.Name, err)
		}
		gw.WithProvider(models.NewProvider(p.Name, llm))
	}
	return gw, nil
}

func serveMetrics(ctx context.Context, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info(ctx, log.KV{K: "msg", V: "serving metrics"}, log.KV{K: "addr", V: addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, err, log.KV{K: "msg", V: "metrics server failed"})
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

type report struct {
	Workflow    *orchestrator.WorkflowResult `yaml:"workflow"`
	Audit       []audit.Entry                `yaml:"audit"`
	SessionCost cost.Snapshot                `yaml:"session_cost"`
}

func printReport(w io.Writer, r report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}
