package pool

import (
	"testing"
	"time"
)

func TestBackoffDelay_Exponential(t *testing.T) {
	interval := 1000 * time.Millisecond

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second}, // 32s capped
		{10, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(RetryExponential, tt.attempt, interval); got != tt.want {
			t.Errorf("backoffDelay(exponential, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelay_Simple(t *testing.T) {
	interval := 250 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		if got := backoffDelay(RetrySimple, attempt, interval); got != interval {
			t.Errorf("backoffDelay(simple, %d) = %v, want %v", attempt, got, interval)
		}
	}
}

func TestBackoffDelay_None(t *testing.T) {
	if got := backoffDelay(RetryNone, 1, time.Second); got != 0 {
		t.Errorf("backoffDelay(none, 1) = %v, want 0", got)
	}
}

func TestAttemptsFor(t *testing.T) {
	tests := []struct {
		policy     RetryPolicy
		configured int
		want       int
	}{
		{RetryNone, 5, 1},
		{RetrySimple, 3, 3},
		{RetrySimple, 0, 1},
		{RetryExponential, 4, 4},
		{RetryExponential, -1, 1},
	}

	for _, tt := range tests {
		if got := attemptsFor(tt.policy, tt.configured); got != tt.want {
			t.Errorf("attemptsFor(%s, %d) = %d, want %d", tt.policy, tt.configured, got, tt.want)
		}
	}
}
