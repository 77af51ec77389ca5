package conn

import "errors"

// Sentinel errors for connection operations.
var (
	// ErrIllegalState indicates an operation that requires a connected
	// session was called in another state.
	ErrIllegalState = errors.New("conn: operation requires a connected session")

	// ErrQueryTimeout indicates a query exceeded its timeout. The
	// underlying transport has been destroyed; the connection must be
	// discarded rather than reused.
	ErrQueryTimeout = errors.New("conn: query timeout")
)
