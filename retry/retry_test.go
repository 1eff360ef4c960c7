package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/gentflow"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{MaxRetries: maxRetries, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		input    error
		expected bool
	}{
		{name: "nil", input: nil, expected: false},
		{name: "plain error", input: errors.New("boom"), expected: false},
		{name: "429", input: &gentflow.ProviderError{Status: 429}, expected: true},
		{name: "500", input: &gentflow.ProviderError{Status: 500}, expected: true},
		{name: "503 wrapped", input: fmt.Errorf("chat: %w", &gentflow.ProviderError{Status: 503}), expected: true},
		{name: "400", input: &gentflow.ProviderError{Status: 400}, expected: false},
		{name: "401", input: &gentflow.ProviderError{Status: 401}, expected: false},
		{name: "ECONNRESET code", input: &gentflow.ProviderError{Code: "ECONNRESET"}, expected: true},
		{name: "EAI_AGAIN code", input: &gentflow.ProviderError{Code: "EAI_AGAIN"}, expected: true},
		{name: "unknown code", input: &gentflow.ProviderError{Code: "EPERM"}, expected: false},
		{
			name:     "provider error wrapping timeout",
			input:    &gentflow.ProviderError{Status: 0, Err: context.DeadlineExceeded},
			expected: true,
		},
		{name: "deadline exceeded", input: context.DeadlineExceeded, expected: true},
		{name: "canceled", input: context.Canceled, expected: false},
		{name: "connection reset", input: fmt.Errorf("read: %w", syscall.ECONNRESET), expected: true},
		{name: "dns error", input: &net.DNSError{Err: "no such host", Name: "api.example", IsNotFound: true}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.input))
		})
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		input    int
		expected time.Duration
	}{
		{name: "first retry", input: 1, expected: 300 * time.Millisecond},
		{name: "second retry doubles", input: 2, expected: 600 * time.Millisecond},
		{name: "third retry", input: 3, expected: 1200 * time.Millisecond},
		{name: "capped", input: 4, expected: 2 * time.Second},
		{name: "below one clamps", input: 0, expected: 300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Delay(tt.input))
		})
	}
}

func TestPolicy_Jitter(t *testing.T) {
	p := Policy{Jitter: 0.2}
	for range 100 {
		d := p.jittered(time.Second)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
	assert.Equal(t, time.Second, Policy{}.jittered(time.Second))
}

func TestDo(t *testing.T) {
	type input struct {
		policy Policy
		errs   []error
	}

	type expected struct {
		calls   int
		retries int
		err     error
		result  string
	}

	transient := &gentflow.ProviderError{Provider: "glm", Status: 503}
	fatal := &gentflow.ProviderError{Provider: "glm", Status: 400}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "first attempt succeeds",
			input:    input{policy: fastPolicy(2), errs: []error{nil}},
			expected: expected{calls: 1, retries: 0, result: "ok"},
		},
		{
			name:     "retries transient then succeeds",
			input:    input{policy: fastPolicy(2), errs: []error{transient, transient, nil}},
			expected: expected{calls: 3, retries: 2, result: "ok"},
		},
		{
			name:     "gives up after budget",
			input:    input{policy: fastPolicy(2), errs: []error{transient, transient, transient, nil}},
			expected: expected{calls: 3, retries: 2, err: transient},
		},
		{
			name:     "fatal error is not retried",
			input:    input{policy: fastPolicy(2), errs: []error{fatal, nil}},
			expected: expected{calls: 1, retries: 0, err: fatal},
		},
		{
			name:     "zero retries",
			input:    input{policy: fastPolicy(0), errs: []error{transient, nil}},
			expected: expected{calls: 1, retries: 0, err: transient},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			var retried []int
			policy := tt.input.policy
			policy.OnRetry = func(attempt int, err error, delay time.Duration) {
				retried = append(retried, attempt)
			}

			got, err := Do(context.Background(), policy, func(ctx context.Context) (string, error) {
				e := tt.input.errs[calls]
				calls++
				if e != nil {
					return "", e
				}
				return "ok", nil
			})

			assert.Equal(t, tt.expected.calls, calls)
			assert.Len(t, retried, tt.expected.retries)
			if tt.expected.err != nil {
				assert.Same(t, tt.expected.err, err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected.result, got)
		})
	}
}

func TestDo_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxRetries: 5, Backoff: time.Hour}
	transient := &gentflow.ProviderError{Status: 500}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, func(ctx context.Context) (int, error) {
			calls++
			return 0, transient
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Same(t, transient, err)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}
