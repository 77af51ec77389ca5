// Package conn implements a single logical database session: one
// transport, one authentication strategy, one borrower at a time.
//
// A connection is a small state machine (see State). It reaches
// CONNECTED only after its strategy authenticates exactly once, tracks
// creation and last-used timestamps for the pool's eviction decisions,
// and destroys its transport when a query outlives its timeout so no
// half-answered request is left pending.
package conn
