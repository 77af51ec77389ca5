package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// DefaultConnectTimeout bounds plain-socket connect attempts when the
// caller does not supply one.
const DefaultConnectTimeout = 30 * time.Second

// readBufferSize is the buffer size for single-shot reads.
const readBufferSize = 4096

// Logger defines the logging interface for the transport.
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

// Options configures a transport dial.
type Options struct {
	// TLS, when non-nil, wraps the stream in a TLS client handshake.
	// Peer certificate validation follows the tls.Config; a rejected
	// certificate fails the dial with ErrTLSRejected.
	TLS *tls.Config

	// ConnectTimeout bounds the TCP connect (and TLS handshake).
	// Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// Socket tuning. Applied best-effort after connect; failures are
	// logged, never fatal.
	KeepAlive      bool
	KeepAliveDelay time.Duration
	NoDelay        bool

	Logger Logger
}

// Transport is a duplex byte stream to a database server.
//
// A Transport has exactly one owner. Unrecoverable I/O errors close the
// stream and are surfaced once to the registered error observer.
type Transport struct {
	host string
	port int

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	errOnce   sync.Once
	onError   func(error)
	onErrorMu sync.Mutex

	logger Logger
}

// Dial opens a plain or TLS byte stream to host:port.
//
// Failure modes map onto the package sentinels: deadline exceeded →
// ErrTimeout, peer refusal → ErrRefused, certificate validation failure
// → ErrTLSRejected.
func Dial(ctx context.Context, host string, port int, opts *Options) (*Transport, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: timeout}

	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, classifyDialError(err))
	}

	applyOptions(raw, opts, logger)

	conn := raw
	if opts.TLS != nil {
		tlsConn := tls.Client(raw, opts.TLS)
		handshakeCtx, cancel := context.WithTimeout(ctx, timeout)
		err = tlsConn.HandshakeContext(handshakeCtx)
		cancel()
		if err != nil {
			raw.Close() //nolint:errcheck // best effort on the error path
			return nil, fmt.Errorf("tls handshake with %s: %w", addr, classifyHandshakeError(err))
		}
		conn = tlsConn
	}

	logger.Debug("transport connected", "addr", addr, "tls", opts.TLS != nil)

	return &Transport{
		host:   host,
		port:   port,
		conn:   conn,
		logger: logger,
	}, nil
}

// applyOptions performs best-effort OS-level socket tuning.
// SetKeepAlive/SetNoDelay failures are logged and otherwise ignored.
func applyOptions(conn net.Conn, opts *Options, logger Logger) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	if opts.KeepAlive {
		if err := tcp.SetKeepAlive(true); err != nil {
			logger.Warn("setting keep-alive", "error", err)
		}
		if opts.KeepAliveDelay > 0 {
			if err := tcp.SetKeepAlivePeriod(opts.KeepAliveDelay); err != nil {
				logger.Warn("setting keep-alive period", "error", err)
			}
		}
	}
	if opts.NoDelay {
		if err := tcp.SetNoDelay(true); err != nil {
			logger.Warn("setting no-delay", "error", err)
		}
	}
}

// OnError registers the single observer notified when the transport
// fails with an unrecoverable I/O error. Later registrations replace
// earlier ones; the observer fires at most once.
func (t *Transport) OnError(fn func(error)) {
	t.onErrorMu.Lock()
	t.onError = fn
	t.onErrorMu.Unlock()
}

// Remote returns the host:port this transport is connected to.
func (t *Transport) Remote() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// Write sends bytes on the stream. A write on a closed transport fails
// with ErrClosed; a failed write closes the transport and notifies the
// error observer.
func (t *Transport) Write(p []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	conn := t.conn
	t.mu.Unlock()

	if _, err := conn.Write(p); err != nil {
		err = fmt.Errorf("writing to %s: %w", t.Remote(), err)
		t.fail(err)
		return err
	}
	return nil
}

// ReadOnce performs a single read and returns whatever bytes arrived.
// The context deadline, if any, bounds the read. Callers accumulate
// across calls when a full protocol frame spans several reads.
func (t *Transport) ReadOnce(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	conn := t.conn
	t.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.logger.Warn("setting read deadline", "error", err)
		}
		defer conn.SetReadDeadline(time.Time{}) //nolint:errcheck // best effort reset
	}

	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		err = fmt.Errorf("reading from %s: %w", t.Remote(), classifyDialError(err))
		t.fail(err)
		return nil, err
	}
	return buf[:n], nil
}

// Close shuts the stream down. Safe to call on an already-closed
// transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing transport to %s: %w", t.Remote(), err)
	}
	return nil
}

// Closed reports whether the transport has been closed.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// fail closes the transport and notifies the observer exactly once.
func (t *Transport) fail(err error) {
	t.errOnce.Do(func() {
		_ = t.Close() //nolint:errcheck // already failing
		t.onErrorMu.Lock()
		fn := t.onError
		t.onErrorMu.Unlock()
		if fn != nil {
			fn(err)
		}
	})
}
