package worker

import (
	"testing"
	"time"
)

func TestRetryStrategy_Backoff(t *testing.T) {
	s := &RetryStrategy{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  8 * time.Second,
		Jitter:      false,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{10, 8 * time.Second}, // capped
	}

	for _, tt := range tests {
		if got := s.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryStrategy_BackoffWithJitter(t *testing.T) {
	s := NewRetryStrategy()

	for attempt := 1; attempt <= 6; attempt++ {
		got := s.Backoff(attempt)
		if got < s.BaseBackoff {
			t.Errorf("Backoff(%d) = %v, below base %v", attempt, got, s.BaseBackoff)
		}
		// 10% jitter around the capped exponential delay
		max := s.MaxBackoff + s.MaxBackoff/10
		if got > max {
			t.Errorf("Backoff(%d) = %v, above jittered cap %v", attempt, got, max)
		}
	}
}

func TestRetryStrategy_Exhausted(t *testing.T) {
	s := NewRetryStrategy()

	tests := []struct {
		attempts int
		want     bool
	}{
		{0, false},
		{2, false},
		{3, true},
		{5, true},
	}

	for _, tt := range tests {
		if got := s.Exhausted(tt.attempts); got != tt.want {
			t.Errorf("Exhausted(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}
