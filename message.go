package gentflow

import "time"

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversational turn. Messages are append-only within a session and
// their role is never reinterpreted.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Session is the unit of conversational state, identified by an opaque id.
//
// An empty Summary means the session has no summary.
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	Messages  []Message `json:"messages" yaml:"messages"`
	Summary   string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// RequestOptions controls how a session is turned into the message list of a chat request.
//
// A zero MaxTokens or MaxMessages falls back to the store's configured limit. A nil
// *RequestOptions means "include the summary and use the store's limits".
type RequestOptions struct {
	// IncludeSummary prepends the stored summary as a system message when one exists.
	IncludeSummary bool
	MaxTokens      int
	MaxMessages    int
}

// ContextStore owns sessions. Implementations must be safe for concurrent use across
// distinct sessions.
type ContextStore interface {
	// CreateSession creates an empty session and returns its id. An empty id generates a
	// new one. Creating an existing id is a no-op that returns the same id.
	CreateSession(id string) string

	// Session returns a copy of the session.
	Session(id string) (*Session, bool)

	// AddMessage appends msg. Fails with ErrSessionNotFound if the session does not exist.
	AddMessage(sessionID string, msg Message) error

	// MessagesForRequest assembles the trimmed message list for the next chat call.
	MessagesForRequest(sessionID string, opts *RequestOptions) ([]Message, error)

	// SetSummary replaces the summary slot without touching the message log.
	SetSummary(sessionID string, summary string) error

	// Summary returns the summary slot. The boolean is false when the session does not
	// exist or has no summary.
	Summary(sessionID string) (string, bool)
}
