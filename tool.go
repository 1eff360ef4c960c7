package gentflow

import "context"

// Tool is a named capability the model can invoke through the tool loop.
//
// Arguments arrive as decoded JSON (map[string]any). The result can be any value: strings are
// injected into the conversation verbatim, everything else is JSON-encoded first.
//
// Use toolchain.NewFunc to build a Tool from a typed Go function.
type Tool interface {
	// Name returns the unique identifier the model uses to call this tool.
	Name() string

	// Description explains what the tool does. It is shown to the model.
	Description() string

	// ParameterSchema returns the JSON Schema of the arguments, or nil when the tool takes
	// no arguments.
	ParameterSchema() map[string]any

	// Execute runs the tool.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ToolRegistry is the view of a tool registry the tool loop needs.
type ToolRegistry interface {
	// List returns all registered tools.
	List() []Tool

	// Execute runs the named tool. Fails with ErrToolNotFound for unknown names.
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// ToolDecision is the structured decision parsed from one model turn: either a tool call
// (Tool non-nil) or a terminal reply (Tool nil).
type ToolDecision struct {
	Tool      *string        `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Reply     *string        `json:"reply,omitempty"`
}

// IsTerminal reports whether the decision ends the loop.
func (d *ToolDecision) IsTerminal() bool {
	return d.Tool == nil
}

// ReplyText returns the reply, or "" when the model omitted it.
func (d *ToolDecision) ReplyText() string {
	if d.Reply == nil {
		return ""
	}
	return *d.Reply
}

// ToolDecisionSchema is the JSON Schema every model turn in the tool loop must satisfy.
var ToolDecisionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"tool": map[string]any{
			"type":        []any{"string", "null"},
			"description": "Tool name to call, or null for no call",
		},
		"arguments": map[string]any{
			"type":                 "object",
			"additionalProperties": true,
			"description":          "Arguments for the tool call",
		},
		"reply": map[string]any{
			"type":        "string",
			"description": "Final reply when not calling a tool",
		},
	},
	"required":             []any{"tool"},
	"additionalProperties": false,
}
