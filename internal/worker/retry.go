package worker

import (
	"errors"
	"time"

	"github.com/JakeFAU/news-crawler/internal/crawler"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 60 * time.Second
)

// RetryPolicy re-runs failed crawls with a fixed backoff.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy returns three attempts spaced one minute apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Backoff: DefaultBackoff}
}

// ShouldRetry decides whether a failed attempt gets another try. Failures that
// cannot change between attempts are not retried. Deadline errors from the
// fetch itself are retried; worker shutdown is decided by the caller.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	return !errors.Is(err, crawler.ErrNoAdapter) && !errors.Is(err, crawler.ErrNotFound)
}
