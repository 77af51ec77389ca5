package pool

import "time"

// RetryPolicy selects how connection attempts against a single host are
// repeated before the pool moves on to the next host.
type RetryPolicy string

const (
	// RetryNone makes a single attempt per host.
	RetryNone RetryPolicy = "none"

	// RetrySimple waits a fixed interval between attempts.
	RetrySimple RetryPolicy = "simple"

	// RetryExponential doubles the interval each attempt, capped at
	// maxBackoff.
	RetryExponential RetryPolicy = "exponentialBackoff"
)

// maxBackoff caps the exponential backoff delay.
const maxBackoff = 30 * time.Second

// attemptsFor returns how many attempts a policy makes per host.
func attemptsFor(policy RetryPolicy, configured int) int {
	if policy == RetryNone {
		return 1
	}
	if configured < 1 {
		return 1
	}
	return configured
}

// backoffDelay returns the wait before the given attempt is retried.
// attempt is 1-based; the delay applies after attempt N fails and
// before attempt N+1 starts.
func backoffDelay(policy RetryPolicy, attempt int, interval time.Duration) time.Duration {
	switch policy {
	case RetrySimple:
		return interval
	case RetryExponential:
		if interval <= 0 {
			return 0
		}
		// Shift overflows long before the cap matters; clamp early.
		if attempt > 20 {
			return maxBackoff
		}
		d := interval << (attempt - 1)
		if d > maxBackoff {
			return maxBackoff
		}
		return d
	default:
		return 0
	}
}
