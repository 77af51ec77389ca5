package conn

// State represents the lifecycle state of a connection, or of the pool
// that owns it (the draining states are pool-level but share the enum).
// A connection has exactly one state at any time.
type State string

const (
	StateDisconnected      State = "DISCONNECTED"
	StateConnecting        State = "CONNECTING"
	StateAuthenticating    State = "AUTHENTICATING"
	StateConnected         State = "CONNECTED"
	StateAuthFailed        State = "AUTH_FAILED"
	StateReconnecting      State = "RECONNECTING"
	StateConnectionRefused State = "CONNECTION_REFUSED"
	StateConnectionTimeout State = "CONNECTION_TIMEOUT"
	StateDisconnecting     State = "DISCONNECTING"
	StatePoolDraining      State = "POOL_DRAINING"
	StatePoolDrained       State = "POOL_DRAINED"
	StateError             State = "ERROR"
)
