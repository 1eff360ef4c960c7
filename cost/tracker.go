package cost

import (
	"sync"

	"github.com/rickchristie/gentflow"
)

// Snapshot is an accumulated cost. Values only grow within a scope's lifetime.
type Snapshot struct {
	TotalCents  float64 `json:"total_cents" yaml:"total_cents"`
	Currency    string  `json:"currency" yaml:"currency"`
	InputCents  float64 `json:"input_cents" yaml:"input_cents"`
	OutputCents float64 `json:"output_cents" yaml:"output_cents"`
	CallCount   int     `json:"call_count" yaml:"call_count"`
}

func zero() Snapshot {
	return Snapshot{Currency: DefaultCurrency}
}

func (s Snapshot) add(c *gentflow.CostEstimate) Snapshot {
	currency := c.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return Snapshot{
		TotalCents:  Round2(s.TotalCents + c.TotalCents),
		Currency:    currency,
		InputCents:  Round2(s.InputCents + c.InputCents),
		OutputCents: Round2(s.OutputCents + c.OutputCents),
		CallCount:   s.CallCount + 1,
	}
}

// Tracker aggregates costs at session, run and global scope. It is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	bySession map[string]Snapshot
	byRun     map[string]Snapshot
	total     Snapshot
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		bySession: make(map[string]Snapshot),
		byRun:     make(map[string]Snapshot),
		total:     zero(),
	}
}

// Record adds c to the session scope, to the run scope when runID is non-empty, and to the
// global scope. A nil cost is ignored and does not count as a call.
func (t *Tracker) Record(sessionID, runID string, c *gentflow.CostEstimate) {
	if c == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.bySession[sessionID] = t.sessionLocked(sessionID).add(c)
	if runID != "" {
		run, ok := t.byRun[runID]
		if !ok {
			run = zero()
		}
		t.byRun[runID] = run.add(c)
	}
	t.total = t.total.add(c)
}

func (t *Tracker) sessionLocked(sessionID string) Snapshot {
	s, ok := t.bySession[sessionID]
	if !ok {
		return zero()
	}
	return s
}

// SessionCost returns the accumulated cost of a session.
func (t *Tracker) SessionCost(sessionID string) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionLocked(sessionID)
}

// RunCost returns the accumulated cost of a run.
func (t *Tracker) RunCost(runID string) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byRun[runID]
	if !ok {
		return zero()
	}
	return s
}

// TotalCost returns the global accumulated cost.
func (t *Tracker) TotalCost() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}
