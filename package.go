// Package gentflow provides the building blocks for prompt-driven LLM agents in Go.
//
// The core is a tool-calling loop that turns one text completion at a time into a bounded
// sequence of tool invocations. The model never receives native function-calling APIs: a
// system prompt lists the available tools and asks for exactly one JSON object per turn,
// either a tool call or a final reply. Every model output is treated as untrusted and is
// parsed and validated before anything acts on it.
//
// Around that loop sit the layers that make runs trustworthy:
//
//   - contextstore: per-session message log, summary slot and token-budget trimming
//   - output: extraction and schema validation of JSON embedded in free-form text
//   - toolchain: the tool registry
//   - toolloop: the round state machine
//   - agent: runs with identity, status lifecycle and summary write-back
//   - orchestrator: multi-step workflows with audit, permissions, approval and cost
//   - gateway: multi-provider chat with fallback models, retry, timeouts and cost
//
// # Quick Start
//
//	chat := gateway.New(gateway.DefaultConfig().WithDefaultModel("deepseek-chat")).
//	    WithProvider(models.NewProvider("deepseek", llm))
//
//	tools := toolchain.NewRegistry().
//	    MustRegister(toolchain.NewFunc(
//	        "get_time",
//	        "Returns the current time in ISO-8601",
//	        nil,
//	        func(ctx context.Context, _ struct{}) (string, error) {
//	            return time.Now().UTC().Format(time.RFC3339), nil
//	        },
//	    ))
//
//	store := contextstore.New(contextstore.DefaultConfig())
//	runner := agent.NewRunner(chat, store, output.NewController(), tools).
//	    WithStateStore(agent.NewMemoryStateStore())
//
//	sessionID := store.CreateSession("")
//	result := runner.Run(ctx, sessionID, "What time is it?", agent.DefaultOptions())
//	if result.Success {
//	    fmt.Println(*result.Reply)
//	}
//
// For multi-step work, wrap the runner in an orchestrator.Orchestrator and configure its
// audit log, permission checker, approval provider and cost tracker.
package gentflow
