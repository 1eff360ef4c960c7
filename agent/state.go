package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/rickchristie/gentflow"
)

// RunState is the persisted snapshot of one run.
type RunState struct {
	RunID     string             `json:"run_id" yaml:"run_id"`
	SessionID string             `json:"session_id" yaml:"session_id"`
	Goal      string             `json:"goal" yaml:"goal"`
	Status    gentflow.RunStatus `json:"status" yaml:"status"`
	StartedAt time.Time          `json:"started_at" yaml:"started_at"`

	// FinishedAt is set once Status is terminal.
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`

	ToolRounds       int     `json:"tool_rounds" yaml:"tool_rounds"`
	Reply            *string `json:"reply,omitempty" yaml:"reply,omitempty"`
	LastRawContent   string  `json:"last_raw_content,omitempty" yaml:"last_raw_content,omitempty"`
	MaxRoundsReached bool    `json:"max_rounds_reached" yaml:"max_rounds_reached"`
	Error            string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Terminal reports whether the run has finished.
func (s RunState) Terminal() bool {
	return s.Status == gentflow.StatusCompleted || s.Status == gentflow.StatusFailed
}

// StateStore persists run snapshots for recovery and inspection. Set is an upsert keyed by
// RunID that also indexes the run under its session.
type StateStore interface {
	Get(runID string) (RunState, bool)
	Set(state RunState)
	Delete(runID string) bool

	// ListBySession returns the session's runs ordered by StartedAt ascending.
	ListBySession(sessionID string) []RunState
}

// MemoryStateStore is the in-memory StateStore. It is safe for concurrent use.
type MemoryStateStore struct {
	mu        sync.RWMutex
	byRun     map[string]RunState
	bySession map[string]map[string]struct{}
}

// NewMemoryStateStore creates an empty MemoryStateStore.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		byRun:     make(map[string]RunState),
		bySession: make(map[string]map[string]struct{}),
	}
}

// Get implements StateStore.
func (m *MemoryStateStore) Get(runID string) (RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byRun[runID]
	return s, ok
}

// Set implements StateStore.
func (m *MemoryStateStore) Set(state RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.byRun[state.RunID]; ok && prev.SessionID != state.SessionID {
		m.unindexLocked(prev)
	}
	m.byRun[state.RunID] = state
	runs, ok := m.bySession[state.SessionID]
	if !ok {
		runs = make(map[string]struct{})
		m.bySession[state.SessionID] = runs
	}
	runs[state.RunID] = struct{}{}
}

// Delete implements StateStore. It reports whether the run existed.
func (m *MemoryStateStore) Delete(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byRun[runID]
	if !ok {
		return false
	}
	delete(m.byRun, runID)
	m.unindexLocked(s)
	return true
}

func (m *MemoryStateStore) unindexLocked(s RunState) {
	runs := m.bySession[s.SessionID]
	delete(runs, s.RunID)
	if len(runs) == 0 {
		delete(m.bySession, s.SessionID)
	}
}

// ListBySession implements StateStore. Runs with equal start times are ordered by RunID.
func (m *MemoryStateStore) ListBySession(sessionID string) []RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := m.bySession[sessionID]
	out := make([]RunState, 0, len(runs))
	for id := range runs {
		out = append(out, m.byRun[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Compile-time check that MemoryStateStore implements StateStore.
var _ StateStore = (*MemoryStateStore)(nil)
