// Package audit records what happened during workflows as an append-only log of entries,
// queryable by session, run and workflow.
package audit

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickchristie/gentflow"
)

// Action names an auditable event.
type Action string

const (
	ActionWorkflowStart        Action = "workflow_start"
	ActionWorkflowStepStart    Action = "workflow_step_start"
	ActionWorkflowStepEnd      Action = "workflow_step_end"
	ActionWorkflowEnd          Action = "workflow_end"
	ActionAgentRun             Action = "agent_run"
	ActionHumanApprovalRequest Action = "human_approval_request"
	ActionHumanApprovalResult  Action = "human_approval_result"
	ActionToolExecution        Action = "tool_execution"
	ActionPermissionCheck      Action = "permission_check"
)

// Entry is a single audit record. ID and Timestamp are assigned by the log on append.
type Entry struct {
	ID         string         `json:"id" yaml:"id"`
	Timestamp  time.Time      `json:"timestamp" yaml:"timestamp"`
	SessionID  string         `json:"session_id" yaml:"session_id"`
	RunID      string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty" yaml:"workflow_id,omitempty"`
	StepIndex  *int           `json:"step_index,omitempty" yaml:"step_index,omitempty"`
	Actor      string         `json:"actor" yaml:"actor"`
	Action     Action         `json:"action" yaml:"action"`
	Resource   string         `json:"resource,omitempty" yaml:"resource,omitempty"`
	Details    map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// Step returns a pointer to i for Entry.StepIndex.
func Step(i int) *int {
	return &i
}

// Log is an append-only audit store.
type Log interface {
	// Append stores e with a fresh ID and Timestamp and returns the stored entry. The
	// error reports a failure to mirror the entry to an external sink; the entry is kept
	// in memory regardless.
	Append(e Entry) (Entry, error)

	Get(id string) (Entry, bool)

	// The List methods return entries ordered by Timestamp, insertion order on ties.
	ListBySession(sessionID string) []Entry
	ListByRun(runID string) []Entry
	ListByWorkflow(workflowID string) []Entry
}

// MemoryLog keeps the audit log in memory, optionally mirroring every entry to a JSONL
// sink. It is safe for concurrent use.
type MemoryLog struct {
	mu         sync.RWMutex
	byID       map[string]Entry
	bySession  map[string][]string
	byRun      map[string][]string
	byWorkflow map[string][]string

	timeProvider gentflow.TimeProvider
	newID        func() string
	sink         *JSONLWriter
}

// NewMemoryLog creates an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		byID:         make(map[string]Entry),
		bySession:    make(map[string][]string),
		byRun:        make(map[string][]string),
		byWorkflow:   make(map[string][]string),
		timeProvider: gentflow.NewDefaultTimeProvider(),
		newID:        NewEntryID,
	}
}

// NewEntryID returns a fresh "audit_" prefixed id.
func NewEntryID() string {
	return "audit_" + uuid.NewString()
}

// WithTimeProvider sets the clock used for entry timestamps.
func (l *MemoryLog) WithTimeProvider(tp gentflow.TimeProvider) *MemoryLog {
	l.timeProvider = tp
	return l
}

// WithIDGenerator replaces the entry id generator.
func (l *MemoryLog) WithIDGenerator(fn func() string) *MemoryLog {
	l.newID = fn
	return l
}

// WithSink mirrors appended entries to w.
func (l *MemoryLog) WithSink(w *JSONLWriter) *MemoryLog {
	l.sink = w
	return l
}

// Append implements Log.
func (l *MemoryLog) Append(e Entry) (Entry, error) {
	l.mu.Lock()
	e.ID = l.newID()
	e.Timestamp = l.timeProvider.Now()
	l.byID[e.ID] = e
	l.bySession[e.SessionID] = append(l.bySession[e.SessionID], e.ID)
	if e.RunID != "" {
		l.byRun[e.RunID] = append(l.byRun[e.RunID], e.ID)
	}
	if e.WorkflowID != "" {
		l.byWorkflow[e.WorkflowID] = append(l.byWorkflow[e.WorkflowID], e.ID)
	}
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.Append(e); err != nil {
			return e, err
		}
	}
	return e, nil
}

// Get implements Log.
func (l *MemoryLog) Get(id string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.byID[id]
	return e, ok
}

// ListBySession implements Log.
func (l *MemoryLog) ListBySession(sessionID string) []Entry {
	return l.list(l.bySession, sessionID)
}

// ListByRun implements Log.
func (l *MemoryLog) ListByRun(runID string) []Entry {
	return l.list(l.byRun, runID)
}

// ListByWorkflow implements Log.
func (l *MemoryLog) ListByWorkflow(workflowID string) []Entry {
	return l.list(l.byWorkflow, workflowID)
}

func (l *MemoryLog) list(index map[string][]string, key string) []Entry {
	l.mu.RLock()
	ids := index[key]
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := l.byID[id]; ok {
			out = append(out, e)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Compile-time check that MemoryLog implements Log.
var _ Log = (*MemoryLog)(nil)
