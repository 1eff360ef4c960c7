package contextstore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/gentflow"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "empty", input: "", expected: 0},
		{name: "one char", input: "a", expected: 1},
		{name: "four chars", input: "abcd", expected: 1},
		{name: "five chars", input: "abcde", expected: 2},
		{name: "multibyte counts runes", input: "日本語です", expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EstimateTokens(tt.input))
		})
	}

	assert.Equal(t, 5, EstimateMessageTokens(gentflow.UserMessage("abc")))
}

func TestStore_CreateSession(t *testing.T) {
	clock := gentflow.NewMockTimeProvider(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(DefaultConfig()).WithTimeProvider(clock)

	id := s.CreateSession("")
	assert.True(t, strings.HasPrefix(id, "sess_"))

	require.Equal(t, "fixed", s.CreateSession("fixed"))
	require.NoError(t, s.AddMessage("fixed", gentflow.UserMessage("hi")))

	clock.Advance(time.Hour)
	assert.Equal(t, "fixed", s.CreateSession("fixed"), "existing id is returned")

	sess, ok := s.Session("fixed")
	require.True(t, ok)
	assert.Len(t, sess.Messages, 1, "re-creating must not reset the session")
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), sess.CreatedAt)
}

func TestStore_NotFound(t *testing.T) {
	s := New(DefaultConfig())

	err := s.AddMessage("missing", gentflow.UserMessage("x"))
	assert.True(t, errors.Is(err, gentflow.ErrSessionNotFound))

	_, err = s.MessagesForRequest("missing", nil)
	assert.ErrorIs(t, err, gentflow.ErrSessionNotFound)

	assert.ErrorIs(t, s.SetSummary("missing", "x"), gentflow.ErrSessionNotFound)

	_, ok := s.Summary("missing")
	assert.False(t, ok)
	_, ok = s.Session("missing")
	assert.False(t, ok)
}

func TestStore_AddMessageUpdatesTimestamp(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := gentflow.NewMockTimeProvider(start)
	s := New(DefaultConfig()).WithTimeProvider(clock)
	s.CreateSession("a")

	clock.Advance(time.Minute)
	require.NoError(t, s.AddMessage("a", gentflow.UserMessage("hi")))

	sess, _ := s.Session("a")
	assert.Equal(t, start, sess.CreatedAt)
	assert.Equal(t, start.Add(time.Minute), sess.UpdatedAt)
}

func TestStore_SessionIsCopy(t *testing.T) {
	s := New(DefaultConfig())
	s.CreateSession("a")
	require.NoError(t, s.AddMessage("a", gentflow.UserMessage("hi")))

	sess, _ := s.Session("a")
	sess.Messages[0].Content = "changed"
	sess.Messages = append(sess.Messages, gentflow.UserMessage("extra"))

	again, _ := s.Session("a")
	assert.Equal(t, []gentflow.Message{gentflow.UserMessage("hi")}, again.Messages)
}

func TestStore_Summary(t *testing.T) {
	type input struct {
		summary string
		opts    *gentflow.RequestOptions
	}

	type expected struct {
		messages []gentflow.Message
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:  "nil options include summary",
			input: input{summary: "user likes tea", opts: nil},
			expected: expected{messages: []gentflow.Message{
				gentflow.SystemMessage("Previous context summary:\nuser likes tea"),
				gentflow.UserMessage("hello"),
			}},
		},
		{
			name:  "summary excluded",
			input: input{summary: "user likes tea", opts: &gentflow.RequestOptions{IncludeSummary: false}},
			expected: expected{messages: []gentflow.Message{
				gentflow.UserMessage("hello"),
			}},
		},
		{
			name:  "no summary stored",
			input: input{summary: "", opts: &gentflow.RequestOptions{IncludeSummary: true}},
			expected: expected{messages: []gentflow.Message{
				gentflow.UserMessage("hello"),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultConfig())
			s.CreateSession("a")
			require.NoError(t, s.AddMessage("a", gentflow.UserMessage("hello")))
			if tt.input.summary != "" {
				require.NoError(t, s.SetSummary("a", tt.input.summary))
				got, ok := s.Summary("a")
				assert.True(t, ok)
				assert.Equal(t, tt.input.summary, got)
			}

			msgs, err := s.MessagesForRequest("a", tt.input.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected.messages, msgs)

			sess, _ := s.Session("a")
			assert.Len(t, sess.Messages, 1, "summary never alters the log")
		})
	}
}

func sys(c string) gentflow.Message  { return gentflow.SystemMessage(c) }
func user(c string) gentflow.Message { return gentflow.UserMessage(c) }
func asst(c string) gentflow.Message { return gentflow.AssistantMessage(c) }

func TestTrimStrategies(t *testing.T) {
	type input struct {
		strategy TrimStrategy
		messages []gentflow.Message
		limits   Limits
	}

	type expected struct {
		messages []gentflow.Message
	}

	// Every 4-char message costs 1 + 4 = 5 tokens.
	history := []gentflow.Message{sys("sys1"), user("u001"), asst("a001"), user("u002"), asst("a002")}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "no limits is a no-op",
			input:    input{strategy: KeepSystemAndRecent{}, messages: history, limits: Limits{}},
			expected: expected{messages: history},
		},
		{
			name:  "keep system, message limit applies to the rest",
			input: input{strategy: KeepSystemAndRecent{}, messages: history, limits: Limits{MaxMessages: 2}},
			expected: expected{messages: []gentflow.Message{
				sys("sys1"), user("u002"), asst("a002"),
			}},
		},
		{
			name:  "keep system, both limits fit with system in front",
			input: input{strategy: KeepSystemAndRecent{}, messages: history, limits: Limits{MaxTokens: 15, MaxMessages: 2}},
			expected: expected{messages: []gentflow.Message{
				sys("sys1"), user("u002"), asst("a002"),
			}},
		},
		{
			name:  "keep system, combined overflow trims from the front",
			input: input{strategy: KeepSystemAndRecent{}, messages: history, limits: Limits{MaxTokens: 15}},
			expected: expected{messages: []gentflow.Message{
				asst("a001"), user("u002"), asst("a002"),
			}},
		},
		{
			name: "keep system falls back when system alone is too large",
			input: input{
				strategy: KeepSystemAndRecent{},
				messages: []gentflow.Message{sys(strings.Repeat("x", 40)), sys("sys2"), user("u001")},
				limits:   Limits{MaxTokens: 12},
			},
			expected: expected{messages: []gentflow.Message{sys("sys2"), user("u001")}},
		},
		{
			name: "keep system retains at least one message",
			input: input{
				strategy: KeepSystemAndRecent{},
				messages: []gentflow.Message{sys(strings.Repeat("x", 400))},
				limits:   Limits{MaxTokens: 10},
			},
			expected: expected{messages: []gentflow.Message{sys(strings.Repeat("x", 400))}},
		},
		{
			name:  "drop oldest ignores roles",
			input: input{strategy: DropOldest{}, messages: history, limits: Limits{MaxMessages: 2}},
			expected: expected{messages: []gentflow.Message{
				user("u002"), asst("a002"),
			}},
		},
		{
			name:  "drop oldest token limit",
			input: input{strategy: DropOldest{}, messages: history, limits: Limits{MaxTokens: 11}},
			expected: expected{messages: []gentflow.Message{
				user("u002"), asst("a002"),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.input.strategy.Trim(tt.input.messages, tt.input.limits)
			assert.Equal(t, tt.expected.messages, got)
		})
	}
}

func TestTrim_Invariants(t *testing.T) {
	for _, strategy := range []TrimStrategy{KeepSystemAndRecent{}, DropOldest{}} {
		for n := 1; n <= 12; n++ {
			var msgs []gentflow.Message
			msgs = append(msgs, sys("rules"))
			for i := range n {
				msgs = append(msgs, user(strings.Repeat("m", i*3+1)))
			}
			nonSystem := n

			for maxMessages := 0; maxMessages <= 6; maxMessages++ {
				for _, maxTokens := range []int{0, 5, 12, 30, 80} {
					name := fmt.Sprintf("%s/n=%d/msgs=%d/tokens=%d", strategy.Name(), n, maxMessages, maxTokens)
					t.Run(name, func(t *testing.T) {
						got := strategy.Trim(msgs, Limits{MaxTokens: maxTokens, MaxMessages: maxMessages})
						require.NotEmpty(t, got)

						gotNonSystem := 0
						for _, m := range got {
							if m.Role != gentflow.RoleSystem {
								gotNonSystem++
							}
						}
						assert.LessOrEqual(t, gotNonSystem, nonSystem)
						if maxMessages > 0 {
							assert.LessOrEqual(t, gotNonSystem, maxMessages)
						}
						if maxTokens > 0 && len(got) > 1 {
							assert.LessOrEqual(t, TotalTokens(got), maxTokens)
						}
					})
				}
			}
		}
	}
}

func TestStore_MessagesForRequestLimits(t *testing.T) {
	s := New(DefaultConfig().WithLimits(0, 3))
	s.CreateSession("a")
	for i := range 5 {
		require.NoError(t, s.AddMessage("a", user(fmt.Sprintf("m%d", i))))
	}

	msgs, err := s.MessagesForRequest("a", &gentflow.RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, []gentflow.Message{user("m2"), user("m3"), user("m4")}, msgs, "store default")

	msgs, err = s.MessagesForRequest("a", &gentflow.RequestOptions{MaxMessages: 1})
	require.NoError(t, err)
	assert.Equal(t, []gentflow.Message{user("m4")}, msgs, "per-call override")

	sess, _ := s.Session("a")
	assert.Len(t, sess.Messages, 5, "trimming never mutates the log")
}

func TestStore_NeedsSummary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SummaryThreshold = 10
	s := New(cfg)
	s.CreateSession("a")

	assert.False(t, s.NeedsSummary("a"))
	require.NoError(t, s.AddMessage("a", user(strings.Repeat("x", 40))))
	assert.True(t, s.NeedsSummary("a"))
	assert.False(t, s.NeedsSummary("missing"))

	assert.False(t, New(DefaultConfig()).NeedsSummary("a"), "disabled by default")
}

func TestStore_DeleteSession(t *testing.T) {
	s := New(DefaultConfig())
	s.CreateSession("a")
	assert.True(t, s.DeleteSession("a"))
	assert.False(t, s.DeleteSession("a"))
	_, ok := s.Session("a")
	assert.False(t, ok)
}

func TestStrategyByName(t *testing.T) {
	st, err := StrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, StrategyKeepSystemAndRecent, st.Name())

	st, err = StrategyByName("drop_oldest")
	require.NoError(t, err)
	assert.Equal(t, StrategyDropOldest, st.Name())

	_, err = StrategyByName("lru")
	assert.Error(t, err)
}

func TestStore_ConcurrentSessions(t *testing.T) {
	s := New(DefaultConfig().WithLimits(0, 0))
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := s.CreateSession(fmt.Sprintf("s%d", i))
			for j := range 50 {
				_ = s.AddMessage(id, user(fmt.Sprintf("%d", j)))
				_, _ = s.MessagesForRequest(id, nil)
			}
		}(i)
	}
	wg.Wait()

	for i := range 10 {
		sess, ok := s.Session(fmt.Sprintf("s%d", i))
		require.True(t, ok)
		assert.Len(t, sess.Messages, 50)
		assert.Equal(t, "0", sess.Messages[0].Content)
		assert.Equal(t, "49", sess.Messages[49].Content)
	}
}
