package contextstore

import (
	"fmt"
	"unicode/utf8"

	"github.com/rickchristie/gentflow"
)

// MessageOverheadTokens is added to every message's estimated token count.
const MessageOverheadTokens = 4

// EstimateTokens approximates the token count of text as ceil(chars/4).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// EstimateMessageTokens estimates one message including the per-message overhead.
func EstimateMessageTokens(m gentflow.Message) int {
	return MessageOverheadTokens + EstimateTokens(m.Content)
}

// TotalTokens estimates a message list.
func TotalTokens(messages []gentflow.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessageTokens(m)
	}
	return total
}

// Limits bounds a request. Zero disables a limit.
type Limits struct {
	MaxTokens   int
	MaxMessages int
}

func (l Limits) none() bool {
	return l.MaxTokens <= 0 && l.MaxMessages <= 0
}

// TrimStrategy reduces a message list to fit within limits. Implementations never return an
// empty list for a non-empty input when only the token limit is exceeded.
type TrimStrategy interface {
	Name() string
	Trim(messages []gentflow.Message, limits Limits) []gentflow.Message
}

const (
	StrategyKeepSystemAndRecent = "keep_system_and_recent"
	StrategyDropOldest          = "drop_oldest"
)

// StrategyByName returns the strategy registered under name.
func StrategyByName(name string) (TrimStrategy, error) {
	switch name {
	case "", StrategyKeepSystemAndRecent:
		return KeepSystemAndRecent{}, nil
	case StrategyDropOldest:
		return DropOldest{}, nil
	default:
		return nil, fmt.Errorf("contextstore: unknown trim strategy %q", name)
	}
}

// DropOldest keeps the most recent messages, first by count and then by tokens, without
// protecting system messages.
//
// Example:
//
//	store := contextstore.New(contextstore.DefaultConfig().WithTrimStrategy(contextstore.DropOldest{}))
type DropOldest struct{}

// Name implements TrimStrategy.
func (DropOldest) Name() string { return StrategyDropOldest }

// Trim implements TrimStrategy.
func (DropOldest) Trim(messages []gentflow.Message, limits Limits) []gentflow.Message {
	if limits.none() {
		return messages
	}
	return dropOldest(messages, limits.MaxTokens, limits.MaxMessages)
}

func dropOldest(messages []gentflow.Message, maxTokens, maxMessages int) []gentflow.Message {
	out := messages
	if maxMessages > 0 && len(out) > maxMessages {
		out = out[len(out)-maxMessages:]
	}
	if maxTokens > 0 {
		total := TotalTokens(out)
		for len(out) > 1 && total > maxTokens {
			total -= EstimateMessageTokens(out[0])
			out = out[1:]
		}
	}
	return out
}

// KeepSystemAndRecent trims only non-system messages, oldest first, and keeps every system
// message in front. When the system messages alone exceed the token limit the combined list
// is trimmed from the front, keeping at least one message.
type KeepSystemAndRecent struct{}

// Name implements TrimStrategy.
func (KeepSystemAndRecent) Name() string { return StrategyKeepSystemAndRecent }

// Trim implements TrimStrategy.
func (KeepSystemAndRecent) Trim(messages []gentflow.Message, limits Limits) []gentflow.Message {
	if limits.none() {
		return messages
	}

	var system, rest []gentflow.Message
	for _, m := range messages {
		if m.Role == gentflow.RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}

	rest = dropOldest(rest, limits.MaxTokens, limits.MaxMessages)
	out := make([]gentflow.Message, 0, len(system)+len(rest))
	out = append(out, system...)
	out = append(out, rest...)

	if limits.MaxTokens > 0 && TotalTokens(out) > limits.MaxTokens {
		return dropOldest(out, limits.MaxTokens, 0)
	}
	return out
}

// Compile-time checks.
var (
	_ TrimStrategy = DropOldest{}
	_ TrimStrategy = KeepSystemAndRecent{}
)
