// Package pool maintains a bounded set of authenticated database
// connections.
//
// Acquire prefers idle connections, creates new ones while under
// MaxSize, and otherwise blocks until a release or the acquire timeout.
// Background sweeps close connections idle past IdleTimeout, replace
// them with fresh sessions when that drops the pool below MinSize, and
// recycle connections older than MaxLifetime.
// Connection creation walks a failover sequence of primary then
// replicas, retrying each host per the configured retry policy with
// exponential backoff capped at thirty seconds.
package pool
