package pool

import "errors"

// Sentinel errors for pool operations.
var (
	// ErrPoolClosed is returned when acquiring from a drained pool.
	ErrPoolClosed = errors.New("pool: pool is closed")

	// ErrAcquireTimeout is returned when no connection became available
	// within the acquire timeout and the pool was at capacity.
	ErrAcquireTimeout = errors.New("pool: acquire timeout")

	// ErrAllAttemptsFailed is returned when every host in the failover
	// sequence was tried, with retries, and none produced a connection.
	ErrAllAttemptsFailed = errors.New("pool: all connection attempts failed")
)
