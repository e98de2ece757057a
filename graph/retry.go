package graph

import (
	"strings"
	"time"
)

// BackoffStrategy defines how retry delays grow between attempts.
type BackoffStrategy int

const (
	FixedBackoff BackoffStrategy = iota
	ExponentialBackoff
	LinearBackoff
)

// RetryPolicy defines in-process retry behavior for failed node invocations.
// Retries happen inside one run; there is no persistence across restarts.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// Backoff selects the delay growth strategy.
	Backoff BackoffStrategy

	// BaseDelay is the delay unit; defaults to one second.
	BaseDelay time.Duration

	// RetryableErrors optionally restricts retries to errors whose message
	// contains one of these substrings. Empty means every error is retried.
	RetryableErrors []string
}

func (p *RetryPolicy) baseDelay() time.Duration {
	if p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return time.Second
}

// delay returns the wait before retrying after the given zero-based attempt.
func (p *RetryPolicy) delay(attempt int) time.Duration {
	base := p.baseDelay()
	switch p.Backoff {
	case ExponentialBackoff:
		return base * time.Duration(1<<attempt)
	case LinearBackoff:
		return base * time.Duration(attempt+1)
	default:
		return base
	}
}

// retryable reports whether the error qualifies for a retry under the policy.
func (p *RetryPolicy) retryable(err error) bool {
	if len(p.RetryableErrors) == 0 {
		return true
	}
	msg := err.Error()
	for _, pattern := range p.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
