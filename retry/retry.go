// Package retry runs a single network attempt with exponential backoff and jitter, retrying
// only errors classified as transient.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/rickchristie/gentflow"
)

// Policy configures retries. MaxRetries counts retries after the first attempt.
type Policy struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	Backoff    time.Duration `json:"backoff" yaml:"backoff"`
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`

	// Jitter spreads each delay uniformly within ±Jitter×delay. Zero disables it.
	Jitter float64 `json:"jitter" yaml:"jitter"`

	// OnRetry, when set, is called before sleeping ahead of each retry.
	OnRetry func(attempt int, err error, delay time.Duration) `json:"-" yaml:"-"`
}

// DefaultPolicy returns 2 retries starting at 300ms, capped at 2s, with 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		Backoff:    300 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
		Jitter:     0.2,
	}
}

// Delay returns the un-jittered delay before retry number attempt (1-based):
// Backoff×2^(attempt-1), capped at MaxBackoff when MaxBackoff is positive.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Backoff) * math.Pow(2, float64(attempt-1))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	return time.Duration(d)
}

func (p Policy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return d
	}
	delta := float64(d) * p.Jitter
	out := float64(d) + (rand.Float64()*2-1)*delta
	if out < 0 {
		return 0
	}
	return time.Duration(out)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the retry budget is spent.
// The last error is returned unchanged. Cancelling ctx stops waiting between attempts.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempt := 0
	for {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		attempt++
		if attempt > p.MaxRetries || !IsRetryable(err) || ctx.Err() != nil {
			return zero, err
		}

		delay := p.jittered(p.Delay(attempt))
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

var retryableCodes = map[string]bool{
	"ETIMEDOUT":  true,
	"ECONNRESET": true,
	"ENOTFOUND":  true,
	"EAI_AGAIN":  true,
}

// IsRetryable reports whether err is transient: a provider error with status 429 or 5xx, a
// provider error carrying a transient network code, a timeout, a connection reset, or a
// DNS lookup failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perr *gentflow.ProviderError
	if errors.As(err, &perr) {
		if perr.Status == 429 || perr.Status >= 500 {
			return true
		}
		if retryableCodes[perr.Code] {
			return true
		}
		if perr.Err == nil {
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
