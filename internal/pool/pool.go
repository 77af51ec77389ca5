package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/dbconduit/internal/auth"
	"github.com/nerrad567/dbconduit/internal/conn"
)

// Defaults applied by New when the configuration leaves them zero.
const (
	DefaultAcquireTimeout = 30 * time.Second
	DefaultSweepInterval  = 10 * time.Second
)

// drainWaitStep is how often Drain re-checks for outstanding actives.
const drainWaitStep = 20 * time.Millisecond

// Logger defines the logging interface for the pool.
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

// HostPort identifies one database endpoint in the failover sequence.
type HostPort struct {
	Host string
	Port int
}

// Config tunes pool sizing, sweeping, retry, and failover behavior.
type Config struct {
	// MinSize is the number of warm connections the pool maintains.
	// MaxSize bounds total connections; 0 ≤ MinSize ≤ MaxSize.
	MinSize int
	MaxSize int

	// AcquireTimeout bounds how long Acquire blocks when the pool is at
	// capacity with nothing idle. Zero means DefaultAcquireTimeout.
	AcquireTimeout time.Duration

	// IdleTimeout evicts connections unused for longer than this, down
	// to MinSize. Zero disables idle eviction.
	IdleTimeout time.Duration

	// MaxLifetime recycles connections older than this regardless of
	// health. Zero disables lifetime recycling.
	MaxLifetime time.Duration

	// SweepInterval is the cadence of the background idle and lifetime
	// sweeps. Zero means DefaultSweepInterval.
	SweepInterval time.Duration

	// RetryPolicy, RetryAttempts, and RetryInterval govern repeated
	// connection attempts against a single host before failing over.
	RetryPolicy   RetryPolicy
	RetryAttempts int
	RetryInterval time.Duration

	// Failover lists replica endpoints tried, in order, after the
	// primary is exhausted.
	Failover []HostPort

	// Session carries connection-string attributes (encoding, schema,
	// application name) applied to every endpoint. Database, host,
	// port, and SSL are filled in per target.
	Session auth.Target
}

// Stats is a point-in-time snapshot of pool accounting.
type Stats struct {
	Active int
	Idle   int
	Total  int

	Created int64
	Closed  int64
	Hits    int64
	Misses  int64
}

// Pool maintains a bounded set of authenticated connections with
// background idle and lifetime sweeps, per-host retry, and
// primary-to-replica failover.
type Pool struct {
	cfg     Config
	connCfg conn.Config
	cred    auth.Credential
	logger  Logger

	mu       sync.Mutex
	total    int
	active   int
	started  bool
	draining bool
	drained  bool

	idle     chan *conn.Conn
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	created atomic.Int64
	closed  atomic.Int64
	hits    atomic.Int64
	misses  atomic.Int64
}

// New validates the configuration and builds an unstarted pool. The
// conn.Config supplies the primary endpoint and per-connection options;
// Failover entries reuse everything but host and port.
func New(cfg Config, connCfg conn.Config, cred auth.Credential, logger Logger) (*Pool, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("pool: max size must be positive, got %d", cfg.MaxSize)
	}
	if cfg.MinSize < 0 || cfg.MinSize > cfg.MaxSize {
		return nil, fmt.Errorf("pool: min size %d must be within [0, %d]", cfg.MinSize, cfg.MaxSize)
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.RetryPolicy == "" {
		cfg.RetryPolicy = RetryNone
	}

	return &Pool{
		cfg:     cfg,
		connCfg: connCfg,
		cred:    cred,
		logger:  logger,
		idle:    make(chan *conn.Conn, cfg.MaxSize),
		stop:    make(chan struct{}),
	}, nil
}

// Start warms the pool to MinSize and launches the sweep loop. Calling
// Start on a started pool is a no-op.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started || p.draining {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.cfg.MinSize; i++ {
		p.mu.Lock()
		p.total++
		p.mu.Unlock()

		c, err := p.connect(ctx)
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return fmt.Errorf("warming pool: %w", err)
		}
		p.idle <- c
	}

	p.wg.Add(1)
	go p.sweepLoop()

	p.logger.Info("pool started",
		"min_size", p.cfg.MinSize,
		"max_size", p.cfg.MaxSize,
		"sweep_interval", p.cfg.SweepInterval.String(),
	)
	return nil
}

// State reports the pool's lifecycle using the shared state enum.
func (p *Pool) State() conn.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.drained:
		return conn.StatePoolDrained
	case p.draining:
		return conn.StatePoolDraining
	case p.started:
		return conn.StateConnected
	default:
		return conn.StateDisconnected
	}
}

// Acquire hands out a connected session: idle-first, then a fresh
// connection while under MaxSize, otherwise it blocks until a release
// or AcquireTimeout. The timeout covers the whole call, including any
// unhealthy idle connections discarded along the way.
func (p *Pool) Acquire(ctx context.Context) (*conn.Conn, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)
	for {
		p.mu.Lock()
		if p.draining {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		p.mu.Unlock()

		select {
		case c := <-p.idle:
			if c.State() != conn.StateConnected {
				p.destroy(c)
				continue
			}
			p.checkOut(c)
			p.hits.Add(1)
			return c, nil
		default:
		}

		p.mu.Lock()
		if p.total < p.cfg.MaxSize {
			// Reserve the slot, then connect outside the lock.
			p.total++
			p.mu.Unlock()

			c, err := p.connect(ctx)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				return nil, err
			}
			p.checkOut(c)
			p.misses.Add(1)
			return c, nil
		}
		atCapacity := p.total
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: no connection released within %s (%d of %d in use)",
				ErrAcquireTimeout, p.cfg.AcquireTimeout, atCapacity, p.cfg.MaxSize)
		}

		timer := time.NewTimer(remaining)
		select {
		case c := <-p.idle:
			timer.Stop()
			if c.State() != conn.StateConnected {
				p.destroy(c)
				continue
			}
			p.checkOut(c)
			p.hits.Add(1)
			return c, nil

		case <-timer.C:
			return nil, fmt.Errorf("%w: no connection released within %s (%d of %d in use)",
				ErrAcquireTimeout, p.cfg.AcquireTimeout, atCapacity, p.cfg.MaxSize)

		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// checkOut marks a connection as handed to a borrower.
func (p *Pool) checkOut(c *conn.Conn) {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	c.Touch()
}

// Release returns a borrowed connection. Healthy connections go back to
// idle; anything not in the CONNECTED state is destroyed, as is every
// connection released while the pool drains.
func (p *Pool) Release(c *conn.Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	p.active--
	draining := p.draining
	p.mu.Unlock()

	if draining || c.State() != conn.StateConnected {
		p.destroy(c)
		return
	}

	c.Touch()
	select {
	case p.idle <- c:
	default:
		p.destroy(c)
	}
}

// Ping checks the pool end to end: borrow a connection, run a trivial
// statement, return it.
func (p *Pool) Ping(ctx context.Context) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("pinging pool: %w", err)
	}
	defer p.Release(c)

	if _, err := c.Query(ctx, "SELECT 1 FROM SYSIBM.SYSDUMMY1", nil, 0); err != nil {
		return fmt.Errorf("pinging pool: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the pool's accounting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	active, total := p.active, p.total
	p.mu.Unlock()

	return Stats{
		Active:  active,
		Idle:    len(p.idle),
		Total:   total,
		Created: p.created.Load(),
		Closed:  p.closed.Load(),
		Hits:    p.hits.Load(),
		Misses:  p.misses.Load(),
	}
}

// Drain shuts the pool down: stops the sweeps, closes idle connections,
// and waits for borrowed connections to come back (they are destroyed
// on release) until the context expires. Safe to call repeatedly.
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	if p.drained {
		p.mu.Unlock()
		return nil
	}
	alreadyDraining := p.draining
	p.draining = true
	started := p.started
	p.mu.Unlock()

	if alreadyDraining {
		return nil
	}

	p.logger.Info("pool draining")

	if started {
		p.stopOnce.Do(func() { close(p.stop) })
		p.wg.Wait()
	}

	for {
		select {
		case c := <-p.idle:
			p.destroy(c)
			continue
		default:
		}
		break
	}

	// Borrowed connections are destroyed by Release; wait them out.
	for {
		p.mu.Lock()
		active := p.active
		p.mu.Unlock()
		if active == 0 {
			break
		}
		select {
		case <-ctx.Done():
			p.logger.Warn("pool drain abandoned active connections", "active", active)
			p.markDrained()
			return ctx.Err()
		case <-time.After(drainWaitStep):
		}
	}

	p.markDrained()
	p.logger.Info("pool drained",
		"created", p.created.Load(),
		"closed", p.closed.Load(),
	)
	return nil
}

func (p *Pool) markDrained() {
	p.mu.Lock()
	p.drained = true
	p.mu.Unlock()
}

// destroy closes a connection and gives its slot back.
func (p *Pool) destroy(c *conn.Conn) {
	if err := c.Close(); err != nil {
		p.logger.Debug("closing pooled connection", "id", c.ID(), "error", err)
	}
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
	p.closed.Add(1)
}

// targets returns the failover sequence: primary first, then replicas.
func (p *Pool) targets() []HostPort {
	targets := make([]HostPort, 0, 1+len(p.cfg.Failover))
	targets = append(targets, HostPort{Host: p.connCfg.Host, Port: p.connCfg.Port})
	return append(targets, p.cfg.Failover...)
}

// connect walks the failover sequence, retrying each host per the
// configured policy, and returns the first connection that dials and
// authenticates. Backoff sleeps happen without any pool lock held.
func (p *Pool) connect(ctx context.Context) (*conn.Conn, error) {
	targets := p.targets()
	attempts := attemptsFor(p.cfg.RetryPolicy, p.cfg.RetryAttempts)

	var lastErr error
	for i, hp := range targets {
		for attempt := 1; attempt <= attempts; attempt++ {
			c, err := p.connectHost(ctx, hp)
			if err == nil {
				if i > 0 {
					p.logger.Warn("connected to failover replica",
						"host", hp.Host, "port", hp.Port, "replica_index", i)
				}
				p.created.Add(1)
				return c, nil
			}
			lastErr = err

			if isCredentialError(err) {
				// Retrying with the same credentials cannot succeed.
				return nil, err
			}

			p.logger.Debug("connection attempt failed",
				"host", hp.Host, "port", hp.Port,
				"attempt", attempt, "of", attempts, "error", err)

			if attempt < attempts {
				delay := backoffDelay(p.cfg.RetryPolicy, attempt, p.cfg.RetryInterval)
				if delay > 0 {
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(delay):
					}
				}
			}
		}
	}

	return nil, fmt.Errorf("%w: %d host(s), %d attempt(s) each: %w",
		ErrAllAttemptsFailed, len(targets), attempts, lastErr)
}

// connectHost builds and connects a single session against one endpoint.
func (p *Pool) connectHost(ctx context.Context, hp HostPort) (*conn.Conn, error) {
	target := p.cfg.Session
	target.Database = p.connCfg.Database
	target.Host = hp.Host
	target.Port = hp.Port
	target.SSL = p.connCfg.Transport.TLS != nil

	strategy, err := auth.ForCredential(p.cred, target, p.logger)
	if err != nil {
		return nil, err
	}

	cfg := p.connCfg
	cfg.Host = hp.Host
	cfg.Port = hp.Port

	c := conn.New(cfg, strategy, p.logger)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// isCredentialError reports whether a connection failure is a
// credential or configuration problem that no retry can fix.
func isCredentialError(err error) bool {
	var rejected *auth.RejectedError
	return errors.Is(err, auth.ErrMissingCredential) ||
		errors.Is(err, auth.ErrConfigInvalid) ||
		errors.Is(err, auth.ErrSignatureInvalid) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrTokenMalformed) ||
		errors.As(err, &rejected)
}

// sweepLoop runs the idle and lifetime sweeps until Drain stops it.
func (p *Pool) sweepLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep(time.Now())
		case <-p.stop:
			return
		}
	}
}

// sweep makes one pass over the idle set: recycle connections past
// MaxLifetime and close every connection idle past IdleTimeout, then
// replenish back up to MinSize with fresh sessions. A stale connection
// is never kept just because the pool is at MinSize; it is closed and
// replaced within the same pass.
func (p *Pool) sweep(now time.Time) {
	n := len(p.idle)
	for i := 0; i < n; i++ {
		var c *conn.Conn
		select {
		case c = <-p.idle:
		default:
			break
		}
		if c == nil {
			break
		}

		switch {
		case c.State() != conn.StateConnected:
			p.destroy(c)

		case p.cfg.MaxLifetime > 0 && now.Sub(c.CreatedAt()) > p.cfg.MaxLifetime:
			p.recycle(c)

		case p.cfg.IdleTimeout > 0 && now.Sub(c.LastUsedAt()) > p.cfg.IdleTimeout:
			p.logger.Debug("evicting idle connection",
				"id", c.ID(), "idle", now.Sub(c.LastUsedAt()).Round(time.Millisecond).String())
			p.destroy(c)

		default:
			select {
			case p.idle <- c:
			default:
				p.destroy(c)
			}
		}
	}

	p.replenish()
}

// recycle reconnects a connection past its lifetime, keeping its slot.
func (p *Pool) recycle(c *conn.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
	defer cancel()

	p.logger.Debug("recycling connection past max lifetime", "id", c.ID())
	if err := c.Reconnect(ctx); err != nil {
		p.logger.Warn("recycling connection failed", "id", c.ID(), "error", err)
		p.destroy(c)
		return
	}
	select {
	case p.idle <- c:
	default:
		p.destroy(c)
	}
}

// replenish creates connections until the pool is back at MinSize.
func (p *Pool) replenish() {
	for {
		p.mu.Lock()
		if p.draining || p.total >= p.cfg.MinSize {
			p.mu.Unlock()
			return
		}
		p.total++
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
		c, err := p.connect(ctx)
		cancel()
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			p.logger.Warn("replenishing pool failed", "error", err)
			return
		}
		select {
		case p.idle <- c:
		default:
			p.destroy(c)
			return
		}
	}
}
