// Package cost estimates the price of chat calls and aggregates it per session, per run and
// globally.
package cost

import (
	"math"

	"github.com/rickchristie/gentflow"
)

// DefaultCurrency is used when a table entry does not name one.
const DefaultCurrency = "USD"

// Entry is the price of one model, in cents per 1000 tokens.
type Entry struct {
	InputCentsPer1K  float64 `json:"input_cents_per_1k" yaml:"input_cents_per_1k"`
	OutputCentsPer1K float64 `json:"output_cents_per_1k" yaml:"output_cents_per_1k"`
	Currency         string  `json:"currency,omitempty" yaml:"currency,omitempty"`
}

// Table maps model names to prices.
type Table map[string]Entry

// DefaultTable returns the built-in price list.
func DefaultTable() Table {
	return Table{
		"gemini-2.5-flash":  {InputCentsPer1K: 0.075, OutputCentsPer1K: 0.3},
		"gemini-2.0-flash":  {InputCentsPer1K: 0.1, OutputCentsPer1K: 0.4},
		"gemini-1.5-flash":  {InputCentsPer1K: 0.075, OutputCentsPer1K: 0.3},
		"glm-4.7":           {InputCentsPer1K: 0.15, OutputCentsPer1K: 0.15},
		"glm-4-flash":       {InputCentsPer1K: 0.05, OutputCentsPer1K: 0.15},
		"glm-4":             {InputCentsPer1K: 0.1, OutputCentsPer1K: 0.1},
		"glm-4-plus":        {InputCentsPer1K: 0.2, OutputCentsPer1K: 0.2},
		"glm-4-air":         {InputCentsPer1K: 0.03, OutputCentsPer1K: 0.03},
		"glm-4-long":        {InputCentsPer1K: 0.1, OutputCentsPer1K: 0.1},
		"deepseek-chat":     {InputCentsPer1K: 0.14, OutputCentsPer1K: 0.28},
		"deepseek-reasoner": {InputCentsPer1K: 0.55, OutputCentsPer1K: 1.1},
	}
}

// Merge returns a copy of t with overrides applied on top.
func (t Table) Merge(overrides Table) Table {
	out := make(Table, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Estimate prices usage for model. It returns nil when usage is nil or the model has no
// table entry; a missing price is not an error.
func Estimate(usage *gentflow.Usage, model string, table Table) *gentflow.CostEstimate {
	if usage == nil {
		return nil
	}
	entry, ok := table[model]
	if !ok {
		return nil
	}

	input := Round2(float64(usage.InputTokens) / 1000 * entry.InputCentsPer1K)
	output := Round2(float64(usage.OutputTokens) / 1000 * entry.OutputCentsPer1K)
	currency := entry.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	return &gentflow.CostEstimate{
		InputCents:  input,
		OutputCents: output,
		TotalCents:  Round2(input + output),
		Currency:    currency,
	}
}

// Round2 rounds to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
