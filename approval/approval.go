// Package approval asks a human whether an orchestrated workflow may continue.
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// Reasons used by the orchestrator.
const (
	ReasonStepContinue  = "step_continue"
	ReasonToolExecution = "tool_execution"
)

// Prompt is shown by Console when asking for an answer.
const Prompt = "Approve? (y/n) [comment]: "

// Request describes what needs approval.
type Request struct {
	RunID      string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty" yaml:"workflow_id,omitempty"`
	StepIndex  *int           `json:"step_index,omitempty" yaml:"step_index,omitempty"`
	Reason     string         `json:"reason" yaml:"reason"`
	Payload    map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Result is a human's answer.
type Result struct {
	Approved bool   `json:"approved" yaml:"approved"`
	Comment  string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Provider obtains approval for a request.
type Provider interface {
	RequestApproval(ctx context.Context, req Request) (Result, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (Result, error)

// RequestApproval implements Provider.
func (f ProviderFunc) RequestApproval(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Auto returns a Provider that answers every request with approved.
func Auto(approved bool) Provider {
	return ProviderFunc(func(context.Context, Request) (Result, error) {
		return Result{Approved: approved}, nil
	})
}

// LineReader reads one answer line. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// Console asks on a terminal. Requests are serialized.
type Console struct {
	mu     sync.Mutex
	reader LineReader
	out    io.Writer
	closer io.Closer
}

// NewConsole creates a Console that prints requests to out and reads answers from reader.
func NewConsole(reader LineReader, out io.Writer) *Console {
	return &Console{reader: reader, out: out}
}

// NewReadlineConsole creates a Console on the process terminal. Call Close when done.
func NewReadlineConsole() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{Prompt: Prompt})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := NewConsole(rl, rl.Stdout())
	c.closer = rl
	return c, nil
}

// Close releases the terminal when the Console owns one.
func (c *Console) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// RequestApproval implements Provider. Interrupts and EOF are returned as errors.
func (c *Console) RequestApproval(ctx context.Context, req Request) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		payload = []byte("{}")
	}
	fmt.Fprintf(c.out, "[Human approval] %s %s\n", req.Reason, payload)

	c.reader.SetPrompt(Prompt)
	line, err := c.reader.Readline()
	if err != nil {
		return Result{}, fmt.Errorf("approval: read answer: %w", err)
	}
	return ParseAnswer(line), nil
}

var (
	approvedPattern = regexp.MustCompile(`(?i)^y`)
	commentPattern  = regexp.MustCompile(`\s+(.+)$`)
)

// ParseAnswer interprets an answer line. It approves iff the trimmed line starts with y or
// Y; the comment is whatever follows the first run of whitespace.
func ParseAnswer(line string) Result {
	trimmed := strings.TrimSpace(line)
	res := Result{Approved: approvedPattern.MatchString(trimmed)}
	if m := commentPattern.FindStringSubmatch(trimmed); m != nil {
		res.Comment = strings.TrimSpace(m[1])
	}
	return res
}

// Compile-time check that Console implements Provider.
var _ Provider = (*Console)(nil)
