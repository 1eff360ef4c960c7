package main

import (
	"context"
	"time"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/schema"
	"github.com/rickchristie/gentflow/toolchain"
)

type addInput struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type addOutput struct {
	Sum float64 `json:"sum"`
}

type timeAfterInput struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// demoTools returns the tools available to every goal run from the command line.
func demoTools(clock gentflow.TimeProvider) *toolchain.Registry {
	getTime := toolchain.NewFunc(
		"get_time",
		"Returns the current time in ISO 8601 format.",
		nil,
		func(ctx context.Context, _ struct{}) (string, error) {
			return clock.Now().UTC().Format(time.RFC3339), nil
		},
	)

	add := toolchain.NewFunc(
		"add",
		"Adds two numbers and returns their sum.",
		schema.Strict(schema.Object(map[string]*schema.Property{
			"a": schema.Number("first addend"),
			"b": schema.Number("second addend"),
		}, "a", "b")),
		func(ctx context.Context, in addInput) (addOutput, error) {
			return addOutput{Sum: in.A + in.B}, nil
		},
	)

	timeAfter := toolchain.NewFunc(
		"time_after",
		"Adds a duration such as \"1h30m\" to a start time and returns the result in ISO 8601 format.",
		schema.Strict(schema.Object(map[string]*schema.Property{
			"start":    schema.String("start time, ISO 8601 or YYYY-MM-DD"),
			"duration": schema.String("Go duration, e.g. 90m or 1h30m"),
		}, "start", "duration")),
		func(ctx context.Context, in timeAfterInput) (string, error) {
			return in.Start.Add(in.Duration).UTC().Format(time.RFC3339), nil
		},
	)

	return toolchain.NewRegistry().MustRegister(getTime, add, timeAfter)
}
