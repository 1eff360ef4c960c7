package models

import "github.com/rickchristie/gentflow"

// NormalizeUsage reads token counts from a langchaingo GenerationInfo map. Vendors use
// different keys; the first positive value wins.
func NormalizeUsage(info map[string]any) *gentflow.Usage {
	input := firstInt(info,
		"PromptTokens", // OpenAI compatible
		"InputTokens",  // Anthropic
		"input_tokens", // Google, Bedrock
	)
	output := firstInt(info,
		"CompletionTokens",
		"OutputTokens",
		"output_tokens",
	)
	total := firstInt(info, "TotalTokens", "total_tokens")
	if total == 0 {
		total = input + output
	}
	if input == 0 && output == 0 && total == 0 {
		return nil
	}
	return &gentflow.Usage{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  total,
	}
}

func firstInt(m map[string]any, keys ...string) int {
	for _, k := range keys {
		if v := intValue(m[k]); v > 0 {
			return v
		}
	}
	return 0
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}
