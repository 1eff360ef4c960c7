package gentflow

import (
	"context"
	"time"
)

// Usage holds token counts reported by a provider.
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
	TotalTokens  int `json:"total_tokens" yaml:"total_tokens"`
}

// CostEstimate is the estimated price of one chat call, in cents.
type CostEstimate struct {
	InputCents  float64 `json:"input_cents" yaml:"input_cents"`
	OutputCents float64 `json:"output_cents" yaml:"output_cents"`
	TotalCents  float64 `json:"total_cents" yaml:"total_cents"`
	Currency    string  `json:"currency" yaml:"currency"`
}

// ChatRequest is a single request to a chat capability.
type ChatRequest struct {
	Messages []Message

	// Model overrides the gateway's default model.
	Model string

	// Provider forces a provider and bypasses the model to provider mapping.
	Provider string

	// Temperature is optional; nil lets the provider decide.
	Temperature *float64

	// MaxTokens limits the completion length. Zero means provider default.
	MaxTokens int

	// Timeout bounds each attempt. The effective timeout is the smaller of this and the
	// gateway's own timeout; zero means unset.
	Timeout time.Duration

	// RequestID correlates log entries. Generated when empty.
	RequestID string
}

// ChatResult is the uniform response of a chat capability.
type ChatResult struct {
	Content      string        `json:"content" yaml:"content"`
	Usage        *Usage        `json:"usage,omitempty" yaml:"usage,omitempty"`
	FinishReason string        `json:"finish_reason,omitempty" yaml:"finish_reason,omitempty"`
	Cost         *CostEstimate `json:"cost,omitempty" yaml:"cost,omitempty"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	Provider     string        `json:"provider,omitempty" yaml:"provider,omitempty"`
	RequestID    string        `json:"request_id,omitempty" yaml:"request_id,omitempty"`
}

// Chatter issues one logical chat call. The tool loop treats the result as opaque except for
// Content and Cost.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

// ChatFunc adapts a function to the Chatter interface.
type ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResult, error)

// Chat calls f.
func (f ChatFunc) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	return f(ctx, req)
}

// Float64 returns a pointer to v. Handy for optional fields such as ChatRequest.Temperature.
func Float64(v float64) *float64 {
	return &v
}

// Compile-time check that ChatFunc implements Chatter.
var _ Chatter = ChatFunc(nil)
