package toolloop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rickchristie/gentflow"
)

const promptHeader = `You are a helpful assistant with access to tools. When the user needs information that a tool can provide, respond with a JSON object only (no other text):
{ "tool": "<tool_name>", "arguments": { ... } }
Use the exact tool name and pass the required arguments. When you do NOT need to call any tool and can answer directly, respond with:
{ "tool": null, "reply": "<your reply to the user>" }

Available tools:
`

const promptFooter = `

Always respond with exactly one JSON object. No markdown, no explanation outside the JSON.`

// BuildSystemPrompt describes every tool and the two-shape response contract.
func BuildSystemPrompt(tools []gentflow.Tool) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)
	for i, t := range tools {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: %s", t.Name(), t.Description())
		if params := t.ParameterSchema(); params != nil {
			if b, err := json.Marshal(params); err == nil {
				fmt.Fprintf(&sb, " Parameters (JSON): %s", b)
			}
		}
	}
	sb.WriteString(promptFooter)
	return sb.String()
}

// ToolResultMessage is the user-role message that injects a tool result.
func ToolResultMessage(toolName, result string) string {
	return fmt.Sprintf("[Tool result for %s]\n%s", toolName, result)
}
