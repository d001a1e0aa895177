package scheduler

import (
	"math/rand"
	"time"

	"social_metrics/internal/domain"
)

// RetryPolicy computes backoff and retry decisions for failed jobs.
type RetryPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
	// Jitter is the +/- fraction applied to each delay, e.g. 0.2 for 20%.
	Jitter float64
}

// ShouldRetry reports whether a job that has run `attempts` times and failed
// with `kind` may be requeued.
func (p RetryPolicy) ShouldRetry(attempts int, kind domain.ErrorKind) bool {
	return kind.Retryable() && attempts < p.MaxAttempts
}

// Delay returns the requeue delay after the given attempt number (1-based):
// initial * 2^(attempt-1), jittered, capped at the max backoff.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff {
			backoff = p.MaxBackoff
			break
		}
	}

	if p.Jitter > 0 {
		spread := float64(backoff) * p.Jitter
		backoff += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	if backoff < 0 {
		backoff = 0
	}
	return backoff
}
