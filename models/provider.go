// Package models adapts langchaingo models into gateway providers.
package models

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/llms"

	"github.com/rickchristie/gentflow"
)

// Provider wraps an llms.Model as a gateway.Provider. It converts messages, forwards
// temperature, max tokens and the model name as call options, and normalizes token usage
// across vendors.
//
// Example usage:
//
//	llm, _ := openai.New(
//	    openai.WithToken(apiKey),
//	    openai.WithBaseURL("https://api.deepseek.com/v1"),
//	)
//	gw := gateway.New(cfg).WithProvider(models.NewProvider("deepseek", llm))
type Provider struct {
	name  string
	model llms.Model
}

// NewProvider creates a Provider registered under name.
func NewProvider(name string, model llms.Model) *Provider {
	return &Provider{name: name, model: model}
}

// Name implements gateway.Provider.
func (p *Provider) Name() string {
	return p.name
}

// Unwrap returns the underlying llms.Model.
func (p *Provider) Unwrap() llms.Model {
	return p.model
}

// Chat implements gateway.Provider.
func (p *Provider) Chat(ctx context.Context, req gentflow.ChatRequest) (*gentflow.ChatResult, error) {
	resp, err := p.model.GenerateContent(ctx, ToMessageContent(req.Messages), CallOptions(req)...)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &gentflow.ProviderError{Provider: p.name, Message: "response has no choices"}
	}

	choice := resp.Choices[0]
	result := &gentflow.ChatResult{
		Content:      choice.Content,
		FinishReason: choice.StopReason,
	}
	if choice.GenerationInfo != nil {
		result.Usage = NormalizeUsage(choice.GenerationInfo)
	}
	return result, nil
}

// ToMessageContent converts gentflow messages to langchaingo message content.
func ToMessageContent(messages []gentflow.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, llms.TextParts(messageType(m.Role), m.Content))
	}
	return out
}

func messageType(role gentflow.Role) llms.ChatMessageType {
	switch role {
	case gentflow.RoleSystem:
		return llms.ChatMessageTypeSystem
	case gentflow.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// CallOptions maps request parameters to langchaingo call options.
func CallOptions(req gentflow.ChatRequest) []llms.CallOption {
	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	return opts
}

// statusPattern finds HTTP status codes in provider error text, e.g.
// "API returned unexpected status code: 429".
var statusPattern = regexp.MustCompile(`status(?: code)?:? (\d{3})`)

type statusCoder interface {
	StatusCode() int
}

func (p *Provider) wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var perr *gentflow.ProviderError
	if errors.As(err, &perr) {
		return err
	}

	status := 0
	var sc statusCoder
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	} else if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ = strconv.Atoi(m[1])
	}
	if status == 0 {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	return &gentflow.ProviderError{Provider: p.name, Status: status, Message: err.Error(), Err: err}
}

// Compile-time check that Provider satisfies the gateway's provider contract.
var _ interface {
	Name() string
	Chat(context.Context, gentflow.ChatRequest) (*gentflow.ChatResult, error)
} = (*Provider)(nil)
