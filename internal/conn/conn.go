package conn

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/dbconduit/internal/auth"
	"github.com/nerrad567/dbconduit/internal/transport"
)

// DefaultQueryTimeout bounds query execution when neither the call nor
// the configuration supplies a timeout.
const DefaultQueryTimeout = 30 * time.Second

// Logger defines the logging interface for connections.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config describes the endpoint a connection targets.
type Config struct {
	Database string
	Host     string
	Port     int

	// Transport carries dial options: TLS, connect timeout, socket
	// tuning. The Logger field is populated by the connection.
	Transport transport.Options

	// QueryTimeout is the default per-query timeout. Zero means
	// DefaultQueryTimeout.
	QueryTimeout time.Duration
}

// Result is the opaque payload a query produces. Interpretation is the
// caller's concern; this layer only moves bytes.
type Result struct {
	Raw     []byte
	Elapsed time.Duration
}

// Conn is a single logical database session: one transport, one
// authentication strategy, one borrower at a time.
type Conn struct {
	id       string
	cfg      Config
	strategy auth.Strategy
	logger   Logger

	mu            sync.Mutex
	state         State
	tr            *transport.Transport
	createdAt     time.Time
	lastUsedAt    time.Time
	slot          int
	inTx          bool
	authenticated bool
}

// New creates a connection in the DISCONNECTED state. Connect must be
// called before it can serve queries.
func New(cfg Config, strategy auth.Strategy, logger Logger) *Conn {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Conn{
		id:       uuid.NewString(),
		cfg:      cfg,
		strategy: strategy,
		logger:   logger,
		state:    StateDisconnected,
		slot:     -1,
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CreatedAt returns when the connection last became CONNECTED from a
// full connect cycle.
func (c *Conn) CreatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createdAt
}

// LastUsedAt returns the last time the connection served a caller.
func (c *Conn) LastUsedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsedAt
}

// Touch stamps the last-used time. Called by the pool on release.
func (c *Conn) Touch() {
	c.mu.Lock()
	c.lastUsedAt = time.Now()
	c.mu.Unlock()
}

// SetSlot records the owning pool slot index.
func (c *Conn) SetSlot(i int) {
	c.mu.Lock()
	c.slot = i
	c.mu.Unlock()
}

// Slot returns the owning pool slot index, or -1 if unpooled.
func (c *Conn) Slot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot
}

// setState transitions the connection's state under the lock.
func (c *Conn) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.logger.Debug("connection state changed", "id", c.id, "from", string(prev), "to", string(s))
	}
}

// Connect opens the transport and runs the authentication strategy.
//
// State path: DISCONNECTED → CONNECTING → AUTHENTICATING → CONNECTED,
// or AUTH_FAILED when the strategy rejects. Dial failures land in
// CONNECTION_REFUSED / CONNECTION_TIMEOUT / ERROR according to cause.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: connect from state %s", ErrIllegalState, state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	return c.dialAndAuthenticate(ctx)
}

// dialAndAuthenticate is shared by Connect and Reconnect. The caller
// has already moved the state to CONNECTING or RECONNECTING.
func (c *Conn) dialAndAuthenticate(ctx context.Context) error {
	opts := c.cfg.Transport
	opts.Logger = c.logger

	start := time.Now()
	tr, err := transport.Dial(ctx, c.cfg.Host, c.cfg.Port, &opts)
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrRefused):
			c.setState(StateConnectionRefused)
		case errors.Is(err, transport.ErrTimeout):
			c.setState(StateConnectionTimeout)
		default:
			c.setState(StateError)
		}
		return fmt.Errorf("connecting to %s (database %s, elapsed %s): %w",
			c.cfg.Host, c.cfg.Database, time.Since(start).Round(time.Millisecond), err)
	}

	tr.OnError(c.onTransportError)

	c.mu.Lock()
	c.tr = tr
	c.state = StateAuthenticating
	c.mu.Unlock()

	if err := c.strategy.Authenticate(ctx, tr); err != nil {
		c.setState(StateAuthFailed)
		tr.Close() //nolint:errcheck // already on the failure path
		return fmt.Errorf("authenticating to %s (database %s): %w", c.cfg.Host, c.cfg.Database, err)
	}

	now := time.Now()
	c.mu.Lock()
	c.createdAt = now
	c.lastUsedAt = now
	c.authenticated = true
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Debug("connection established",
		"id", c.id,
		"host", c.cfg.Host,
		"database", c.cfg.Database,
		"mechanism", string(c.strategy.Mechanism()),
	)
	return nil
}

// Reconnect tears the current transport down and performs a fresh
// connect/authenticate cycle. Used by the pool when recycling a
// connection past its lifetime.
//
// State path: CONNECTED → RECONNECTING → CONNECTED, or ERROR.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: reconnect from state %s", ErrIllegalState, state)
	}
	c.state = StateReconnecting
	tr := c.tr
	c.tr = nil
	c.mu.Unlock()

	if tr != nil {
		tr.Close() //nolint:errcheck // being replaced
	}

	if err := c.dialAndAuthenticate(ctx); err != nil {
		c.setState(StateError)
		return err
	}
	return nil
}

// onTransportError handles unrecoverable I/O failures surfaced by the
// transport. An orderly shutdown is not an error.
func (c *Conn) onTransportError(err error) {
	c.mu.Lock()
	state := c.state
	if state != StateDisconnecting && state != StateDisconnected {
		c.state = StateError
	}
	c.mu.Unlock()

	if state != StateDisconnecting && state != StateDisconnected {
		c.logger.Warn("connection transport failed", "id", c.id, "error", err)
	}
}

// Query executes a statement with positional parameters and returns the
// opaque result payload.
//
// The round-trip races a timeout; on expiry the transport is destroyed
// so no half-answered request lingers, the connection moves to ERROR,
// and the caller gets ErrQueryTimeout.
func (c *Conn) Query(ctx context.Context, sql string, params []any, timeout time.Duration) (*Result, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: query in state %s", ErrIllegalState, state)
	}
	c.lastUsedAt = time.Now()
	tr := c.tr
	c.mu.Unlock()

	if timeout <= 0 {
		timeout = c.cfg.QueryTimeout
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	start := time.Now()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	// The timer below is the sole authority on the query timeout; on
	// expiry the transport is destroyed, which unblocks the read.
	go func() {
		raw, err := c.roundTrip(ctx, tr, sql, params)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{result: &Result{Raw: raw, Elapsed: time.Since(start)}}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("querying %s (database %s, elapsed %s): %w",
				c.cfg.Host, c.cfg.Database, time.Since(start).Round(time.Millisecond), out.err)
		}
		return out.result, nil

	case <-timer.C:
		// Destroy the transport so the in-flight read fails instead of
		// leaving a half-answered request pending.
		tr.Close() //nolint:errcheck // forced teardown
		c.setState(StateError)
		return nil, fmt.Errorf("%w: %s on %s (database %s, elapsed %s)",
			ErrQueryTimeout, truncateSQL(sql), c.cfg.Host, c.cfg.Database,
			time.Since(start).Round(time.Millisecond))
	}
}

// roundTrip writes one statement frame and reads one response.
func (c *Conn) roundTrip(ctx context.Context, tr *transport.Transport, sql string, params []any) ([]byte, error) {
	frame := encodeStatement(sql, params)
	if err := tr.Write(frame); err != nil {
		return nil, err
	}
	return tr.ReadOnce(ctx)
}

// encodeStatement frames a statement for the wire: a 4-byte big-endian
// length followed by the SQL text and each positional parameter,
// NUL-separated.
func encodeStatement(sql string, params []any) []byte {
	body := []byte(sql)
	for _, p := range params {
		body = append(body, 0x00)
		body = append(body, []byte(fmt.Sprint(p))...)
	}

	frame := make([]byte, 4, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	return append(frame, body...)
}

// truncateSQL shortens statements for diagnostics.
func truncateSQL(sql string) string {
	const maxLen = 60
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen] + "..."
}

// Begin starts a transaction. Requires a connected session.
func (c *Conn) Begin(ctx context.Context) error {
	if err := c.requireConnected("begin transaction"); err != nil {
		return err
	}
	if _, err := c.Query(ctx, "BEGIN", nil, 0); err != nil {
		return err
	}
	c.mu.Lock()
	c.inTx = true
	c.mu.Unlock()
	return nil
}

// Commit commits the current transaction. Requires a connected session.
func (c *Conn) Commit(ctx context.Context) error {
	if err := c.requireConnected("commit"); err != nil {
		return err
	}
	if _, err := c.Query(ctx, "COMMIT", nil, 0); err != nil {
		return err
	}
	c.mu.Lock()
	c.inTx = false
	c.mu.Unlock()
	return nil
}

// Rollback rolls the current transaction back. Requires a connected
// session.
func (c *Conn) Rollback(ctx context.Context) error {
	if err := c.requireConnected("rollback"); err != nil {
		return err
	}
	_, err := c.Query(ctx, "ROLLBACK", nil, 0)
	c.mu.Lock()
	c.inTx = false
	c.mu.Unlock()
	return err
}

// FailWithRollback attempts a best-effort rollback before surfacing the
// original error. A rollback failure is attached as secondary context,
// never substituted for the original.
func (c *Conn) FailWithRollback(ctx context.Context, original error) error {
	if rbErr := c.Rollback(ctx); rbErr != nil {
		c.logger.Warn("rollback after error failed", "id", c.id, "error", rbErr)
		return fmt.Errorf("%w (rollback failed: %v)", original, rbErr)
	}
	return original
}

// InTransaction reports whether a transaction is open.
func (c *Conn) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inTx
}

// requireConnected fails with ErrIllegalState unless the session is
// CONNECTED.
func (c *Conn) requireConnected(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return fmt.Errorf("%w: %s in state %s", ErrIllegalState, op, c.state)
	}
	return nil
}

// Close tears the session down: CONNECTED → DISCONNECTING →
// DISCONNECTED. Safe to call repeatedly and from any state.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnecting
	tr := c.tr
	c.tr = nil
	c.mu.Unlock()

	var err error
	if tr != nil {
		err = tr.Close()
	}

	c.setState(StateDisconnected)
	return err
}
