// Package contextstore keeps per-session message logs in memory and assembles the trimmed
// message list for each chat request.
package contextstore

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rickchristie/gentflow"
)

// SummaryPrefix introduces the stored summary when it is injected as a system message.
const SummaryPrefix = "Previous context summary:\n"

// Config configures a Store.
type Config struct {
	// MaxTokens and MaxMessages are the default request limits. Zero disables a limit.
	MaxTokens   int
	MaxMessages int

	// Strategy trims requests. Defaults to KeepSystemAndRecent.
	Strategy TrimStrategy

	// SummaryThreshold makes NeedsSummary report true once a session's history exceeds
	// this many estimated tokens. Zero disables it.
	SummaryThreshold int
}

// DefaultConfig returns 8000 tokens, 50 messages and KeepSystemAndRecent.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   8000,
		MaxMessages: 50,
		Strategy:    KeepSystemAndRecent{},
	}
}

// WithTrimStrategy returns a copy of c using s.
func (c Config) WithTrimStrategy(s TrimStrategy) Config {
	c.Strategy = s
	return c
}

// WithLimits returns a copy of c with the given default limits.
func (c Config) WithLimits(maxTokens, maxMessages int) Config {
	c.MaxTokens = maxTokens
	c.MaxMessages = maxMessages
	return c
}

// Store is an in-memory gentflow.ContextStore. Operations on distinct sessions may run
// concurrently; each operation is atomic, but callers sharing one session must still order
// their own appends.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*gentflow.Session
	config   Config
	clock    gentflow.TimeProvider
}

// New creates a Store.
func New(config Config) *Store {
	if config.Strategy == nil {
		config.Strategy = KeepSystemAndRecent{}
	}
	return &Store{
		sessions: make(map[string]*gentflow.Session),
		config:   config,
		clock:    gentflow.NewDefaultTimeProvider(),
	}
}

// WithTimeProvider sets the clock used for session timestamps.
func (s *Store) WithTimeProvider(tp gentflow.TimeProvider) *Store {
	s.clock = tp
	return s
}

// CreateSession implements gentflow.ContextStore.
func (s *Store) CreateSession(id string) string {
	if id == "" {
		id = "sess_" + uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return id
	}
	now := s.clock.Now()
	s.sessions[id] = &gentflow.Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// Session implements gentflow.ContextStore.
func (s *Store) Session(id string) (*gentflow.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *sess
	cp.Messages = append([]gentflow.Message(nil), sess.Messages...)
	return &cp, true
}

// AddMessage implements gentflow.ContextStore.
func (s *Store) AddMessage(sessionID string, msg gentflow.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return notFound(sessionID)
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = s.clock.Now()
	return nil
}

// MessagesForRequest implements gentflow.ContextStore.
func (s *Store) MessagesForRequest(sessionID string, opts *gentflow.RequestOptions) ([]gentflow.Message, error) {
	if opts == nil {
		opts = &gentflow.RequestOptions{IncludeSummary: true}
	}

	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.RUnlock()
		return nil, notFound(sessionID)
	}
	messages := make([]gentflow.Message, 0, len(sess.Messages)+1)
	if opts.IncludeSummary && sess.Summary != "" {
		messages = append(messages, gentflow.SystemMessage(SummaryPrefix+sess.Summary))
	}
	messages = append(messages, sess.Messages...)
	s.mu.RUnlock()

	limits := Limits{MaxTokens: s.config.MaxTokens, MaxMessages: s.config.MaxMessages}
	if opts.MaxTokens > 0 {
		limits.MaxTokens = opts.MaxTokens
	}
	if opts.MaxMessages > 0 {
		limits.MaxMessages = opts.MaxMessages
	}
	return s.config.Strategy.Trim(messages, limits), nil
}

// SetSummary implements gentflow.ContextStore.
func (s *Store) SetSummary(sessionID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return notFound(sessionID)
	}
	sess.Summary = summary
	sess.UpdatedAt = s.clock.Now()
	return nil
}

// Summary implements gentflow.ContextStore.
func (s *Store) Summary(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Summary == "" {
		return "", false
	}
	return sess.Summary, true
}

// NeedsSummary reports whether the session's full history exceeds the configured summary
// threshold.
func (s *Store) NeedsSummary(sessionID string) bool {
	if s.config.SummaryThreshold <= 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	return TotalTokens(sess.Messages) > s.config.SummaryThreshold
}

// DeleteSession removes a session. It reports whether the session existed.
func (s *Store) DeleteSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}

func notFound(sessionID string) error {
	return fmt.Errorf("%w: %s", gentflow.ErrSessionNotFound, sessionID)
}

// Compile-time check that Store implements gentflow.ContextStore.
var _ gentflow.ContextStore = (*Store)(nil)
