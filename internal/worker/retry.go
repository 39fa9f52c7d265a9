package worker

import (
	"math"
	"math/rand"
	"time"
)

// RetryStrategy computes exponential backoff delays for failed sends
type RetryStrategy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Jitter      bool
}

// NewRetryStrategy returns a strategy with 1s/2s/4s backoff capped at 8s
func NewRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  8 * time.Second,
		Jitter:      true,
	}
}

// Backoff returns the delay before the given attempt number (1-based)
func (s *RetryStrategy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return s.BaseBackoff
	}

	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * s.BaseBackoff
	if backoff > s.MaxBackoff {
		backoff = s.MaxBackoff
	}

	if s.Jitter {
		jitterRange := backoff / 10
		if jitterRange > 0 {
			jitter := time.Duration(rand.Intn(int(jitterRange*2))) - jitterRange
			backoff += jitter
			if backoff < s.BaseBackoff {
				backoff = s.BaseBackoff
			}
		}
	}

	return backoff
}

// Exhausted reports whether the attempt budget is used up
func (s *RetryStrategy) Exhausted(attempts int) bool {
	return attempts >= s.MaxAttempts
}
