package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/config"
	"github.com/rickchristie/gentflow/cost"
	"github.com/rickchristie/gentflow/orchestrator"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected flags
		err      string
	}{
		{
			name:  "defaults",
			input: []string{"what time is it"},
			expected: flags{
				actorID: orchestrator.DefaultActor,
				goals:   []string{"what time is it"},
			},
		},
		{
			name:  "all flags",
			input: []string{"-config", "g.yaml", "-approve", "-metrics-addr", ":9090", "-audit-file", "a.jsonl", "-session", "s1", "-actor", "alice", "-v", "one", "two"},
			expected: flags{
				configPath:  "g.yaml",
				approve:     true,
				metricsAddr: ":9090",
				auditFile:   "a.jsonl",
				sessionID:   "s1",
				actorID:     "alice",
				verbose:     true,
				goals:       []string{"one", "two"},
			},
		},
		{
			name:  "no goals",
			input: []string{"-approve"},
			err:   "at least one goal is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseFlags(tt.input)
			if tt.err != "" {
				assert.EqualError(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f)
		})
	}
}

func TestDemoTools(t *testing.T) {
	clock := gentflow.NewMockTimeProvider(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC))
	tools := demoTools(clock)
	ctx := context.Background()

	now, err := tools.Execute(ctx, "get_time", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T09:30:00Z", now)

	sum, err := tools.Execute(ctx, "add", map[string]any{"a": 2, "b": 3.5})
	require.NoError(t, err)
	assert.Equal(t, addOutput{Sum: 5.5}, sum)

	_, err = tools.Execute(ctx, "add", map[string]any{"a": 2})
	assert.ErrorIs(t, err, gentflow.ErrInvalidToolArgs)
}

func TestDemoTools_TimeAfter(t *testing.T) {
	tools := demoTools(gentflow.NewDefaultTimeProvider())

	tests := []struct {
		name     string
		input    map[string]any
		expected string
	}{
		{
			name:     "rfc3339 start",
			input:    map[string]any{"start": "2025-03-01T09:00:00Z", "duration": "1h30m"},
			expected: "2025-03-01T10:30:00Z",
		},
		{
			name:     "date only start",
			input:    map[string]any{"start": "2025-03-01", "duration": "36h"},
			expected: "2025-03-02T12:00:00Z",
		},
		{
			name:     "zone-less start",
			input:    map[string]any{"start": "2025-03-01 23:45", "duration": "30m"},
			expected: "2025-03-02T00:15:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tools.Execute(context.Background(), "time_after", tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := tools.Execute(context.Background(), "time_after", map[string]any{"start": "soon", "duration": "1h"})
	assert.ErrorIs(t, err, gentflow.ErrInvalidToolArgs)
}

func TestNewGateway(t *testing.T) {
	cfg, err := config.Parse(nil, func(k string) (string, bool) {
		if k == config.EnvDeepSeekAPIKey {
			return "sk-test", true
		}
		return "", false
	})
	require.NoError(t, err)

	gw, err := newGateway(cfg)
	require.NoError(t, err)
	assert.NotNil(t, gw)
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer

	err := printReport(&buf, report{
		Workflow:    &orchestrator.WorkflowResult{Success: true, WorkflowID: "wf_1", SessionID: "s1"},
		SessionCost: cost.Snapshot{TotalCents: 1.25, Currency: "USD", CallCount: 2},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "workflow_id: wf_1")
	assert.Contains(t, out, "total_cents: 1.25")
	assert.Contains(t, out, "call_count: 2")
}
