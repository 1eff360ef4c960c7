package gentflow

import (
	"sync"
	"time"
)

// TimeProvider supplies the current time. Runs, audit entries and sessions take their
// timestamps from it so tests can control the clock.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
}

// DefaultTimeProvider is the standard TimeProvider using the system clock.
type DefaultTimeProvider struct{}

// NewDefaultTimeProvider creates a new DefaultTimeProvider.
func NewDefaultTimeProvider() *DefaultTimeProvider {
	return &DefaultTimeProvider{}
}

// Now returns the current system time in UTC.
func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// Compile-time check that DefaultTimeProvider implements TimeProvider.
var _ TimeProvider = (*DefaultTimeProvider)(nil)

// MockTimeProvider is a TimeProvider that returns a controllable time.
// Useful for testing time-dependent functionality.
type MockTimeProvider struct {
	mu        sync.Mutex
	fixedTime time.Time
	step      time.Duration
}

// NewMockTimeProvider creates a MockTimeProvider with the given fixed time.
func NewMockTimeProvider(t time.Time) *MockTimeProvider {
	return &MockTimeProvider{fixedTime: t}
}

// WithStep makes every call to Now advance the clock by d after returning.
func (m *MockTimeProvider) WithStep(d time.Duration) *MockTimeProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.step = d
	return m
}

// SetTime updates the time returned by Now().
func (m *MockTimeProvider) SetTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixedTime = t
}

// Advance moves the clock forward by d.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixedTime = m.fixedTime.Add(d)
}

// Now returns the current mock time.
func (m *MockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.fixedTime
	m.fixedTime = m.fixedTime.Add(m.step)
	return now
}

// Compile-time check that MockTimeProvider implements TimeProvider.
var _ TimeProvider = (*MockTimeProvider)(nil)
