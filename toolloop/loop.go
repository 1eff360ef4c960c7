// Package toolloop drives the prompt-based tool-calling state machine.
//
// Each round issues one chat call, records the raw assistant output in the session, and
// classifies it as a tool call or a terminal reply. Tool results are injected back as user
// messages and the loop continues until the model replies, emits something unparseable, or
// the round budget runs out:
//
//	AwaitingDecision -> ExecutingTool -> AwaitingDecision
//	AwaitingDecision -> Terminal(reply | parse failed | max rounds)
//
// A malformed decision ends the loop immediately. It is a protocol violation by the model,
// not a transient fault, so there is no re-prompting.
package toolloop

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"goa.design/clue/log"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/output"
	"github.com/rickchristie/gentflow/schema"
)

const (
	DefaultMaxToolRounds = 5
	DefaultTemperature   = 0.1
	DefaultMaxTokens     = 500

	// SnippetLength bounds RoundReport.ResultSnippet.
	SnippetLength = 200
)

var decisionSchema = schema.MustCompile(gentflow.ToolDecisionSchema)

// Observer is called synchronously after every round. It cannot change the loop's course:
// panics are recovered and logged.
type Observer func(ctx context.Context, round int, result *gentflow.ChatResult, report gentflow.RoundReport)

// Options configures one Run. Zero values select the defaults.
type Options struct {
	MaxToolRounds int
	Temperature   *float64
	MaxTokens     int

	// Model is forwarded to the chat capability; empty leaves the choice to it.
	Model string

	OnAfterRound Observer
}

// DefaultOptions returns 5 rounds, temperature 0.1 and 500 max tokens.
func DefaultOptions() Options {
	return Options{
		MaxToolRounds: DefaultMaxToolRounds,
		Temperature:   gentflow.Float64(DefaultTemperature),
		MaxTokens:     DefaultMaxTokens,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxToolRounds <= 0 {
		o.MaxToolRounds = DefaultMaxToolRounds
	}
	if o.Temperature == nil {
		o.Temperature = gentflow.Float64(DefaultTemperature)
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// Result is the outcome of one Run. Reply is non-nil iff the model ended the loop with a
// terminal decision.
type Result struct {
	Reply            *string
	ToolRounds       int
	LastRawContent   string
	MaxRoundsReached bool

	// ParseErrors holds the parser messages when the loop stopped on a malformed decision.
	ParseErrors []string
}

// Loop runs tool-calling conversations against a session.
type Loop struct {
	chat   gentflow.Chatter
	store  gentflow.ContextStore
	tools  gentflow.ToolRegistry
	parser *output.Controller
}

// New creates a Loop. Decisions are parsed with markdown stripping enabled.
func New(chat gentflow.Chatter, store gentflow.ContextStore, tools gentflow.ToolRegistry) *Loop {
	return &Loop{
		chat:   chat,
		store:  store,
		tools:  tools,
		parser: output.NewController(),
	}
}

// WithParser replaces the output controller used to parse decisions.
func (l *Loop) WithParser(p *output.Controller) *Loop {
	l.parser = p
	return l
}

// Run appends the tool prompt and userMessage to the session, then runs rounds until a
// terminal state. Errors from the chat capability or the context store are returned as is;
// tool failures are converted into tool results for the next round.
func (l *Loop) Run(ctx context.Context, sessionID, userMessage string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	prompt := BuildSystemPrompt(l.tools.List())
	if err := l.store.AddMessage(sessionID, gentflow.SystemMessage(prompt)); err != nil {
		return nil, err
	}
	if err := l.store.AddMessage(sessionID, gentflow.UserMessage(userMessage)); err != nil {
		return nil, err
	}

	res := &Result{}
	for round := 0; round < opts.MaxToolRounds; round++ {
		messages, err := l.store.MessagesForRequest(sessionID, &gentflow.RequestOptions{IncludeSummary: false})
		if err != nil {
			return nil, err
		}

		chatResult, err := l.chat.Chat(ctx, gentflow.ChatRequest{
			Messages:    messages,
			Model:       opts.Model,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		if chatResult == nil {
			chatResult = &gentflow.ChatResult{}
		}
		content := chatResult.Content
		res.LastRawContent = content

		if err := l.store.AddMessage(sessionID, gentflow.AssistantMessage(content)); err != nil {
			return nil, err
		}

		decision, err := l.ParseDecision(content)
		if err != nil {
			res.ParseErrors = output.Messages(err)
			notify(ctx, opts.OnAfterRound, round, chatResult, gentflow.RoundReport{
				Kind:   gentflow.ReportParseFailed,
				Errors: res.ParseErrors,
			})
			return res, nil
		}

		if decision.IsTerminal() {
			reply := decision.ReplyText()
			res.Reply = &reply
			res.LastRawContent = ""
			notify(ctx, opts.OnAfterRound, round, chatResult, gentflow.RoundReport{
				Kind:  gentflow.ReportFinalReply,
				Reply: reply,
			})
			return res, nil
		}

		res.ToolRounds++
		name := *decision.Tool
		args := decision.Arguments
		if args == nil {
			args = map[string]any{}
		}
		toolResult := ExecuteCall(ctx, l.tools, name, args)
		notify(ctx, opts.OnAfterRound, round, chatResult, gentflow.RoundReport{
			Kind:          gentflow.ReportToolCall,
			ToolName:      name,
			Arguments:     args,
			ResultSnippet: Snippet(toolResult),
		})

		if err := l.store.AddMessage(sessionID, gentflow.UserMessage(ToolResultMessage(name, toolResult))); err != nil {
			return nil, err
		}
	}

	res.MaxRoundsReached = true
	return res, nil
}

// ParseDecision parses content as a ToolDecision.
func (l *Loop) ParseDecision(content string) (*gentflow.ToolDecision, error) {
	var d gentflow.ToolDecision
	err := l.parser.Decode(content, output.ParseOptions{Schema: decisionSchema, Strip: output.StripOn}, &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ExecuteCall runs a tool and renders its result as text. Strings pass through, other values
// are JSON-encoded, and any error or panic becomes "Error: <message>".
func ExecuteCall(ctx context.Context, tools gentflow.ToolRegistry, name string, args map[string]any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("Error: panic: %v", r)
		}
	}()

	result, err := tools.Execute(ctx, name, args)
	if err != nil {
		return "Error: " + err.Error()
	}
	if s, ok := result.(string); ok {
		return s
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "Error: " + err.Error()
	}
	return string(b)
}

// Snippet truncates s to SnippetLength characters, appending "..." when it was cut.
func Snippet(s string) string {
	if utf8.RuneCountInString(s) <= SnippetLength {
		return s
	}
	return string([]rune(s)[:SnippetLength]) + "..."
}

func notify(ctx context.Context, obs Observer, round int, result *gentflow.ChatResult, report gentflow.RoundReport) {
	if obs == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, fmt.Errorf("observer panic: %v", r),
				log.KV{K: "msg", V: "round observer panicked"},
				log.KV{K: "round", V: round},
			)
		}
	}()
	obs(ctx, round, result, report)
}
