// dbconduit - database client transport and authentication daemon
//
// dbconduit maintains an authenticated connection pool against a
// database server: TCP/TLS transport, pluggable authentication
// (password, Kerberos ticket, signed token, directory bind), bounded
// pooling with idle and lifetime sweeps, retry with backoff, and
// primary-to-replica failover.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nerrad567/dbconduit/internal/auth"
	"github.com/nerrad567/dbconduit/internal/conn"
	"github.com/nerrad567/dbconduit/internal/infrastructure/config"
	"github.com/nerrad567/dbconduit/internal/infrastructure/logging"
	"github.com/nerrad567/dbconduit/internal/pool"
	"github.com/nerrad567/dbconduit/internal/transport"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Cadence of the periodic pool health check.
const healthCheckInterval = 30 * time.Second

// How long a graceful drain may take before actives are abandoned.
const drainTimeout = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Optional .env for local development; secrets normally arrive via
	// real environment variables.
	_ = godotenv.Load()

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting dbconduit",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	cred, err := auth.CredentialFromConfig(cfg.Auth)
	if err != nil {
		return fmt.Errorf("building credential: %w", err)
	}
	log.Info("authentication configured", "mechanism", cfg.Auth.Mechanism)

	tlsCfg, err := buildTLSConfig(cfg.Database.TLS, cfg.Database.Host)
	if err != nil {
		return fmt.Errorf("building TLS config: %w", err)
	}

	connCfg := conn.Config{
		Database: cfg.Database.Name,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Transport: transport.Options{
			TLS:       tlsCfg,
			KeepAlive: true,
			NoDelay:   true,
			Logger:    log,
		},
	}

	poolCfg := pool.Config{
		MinSize:        cfg.Pool.MinSize,
		MaxSize:        cfg.Pool.MaxSize,
		AcquireTimeout: cfg.GetAcquireTimeout(),
		IdleTimeout:    cfg.GetIdleTimeout(),
		MaxLifetime:    cfg.GetMaxLifetime(),
		SweepInterval:  cfg.GetSweepInterval(),
		RetryPolicy:    pool.RetryPolicy(cfg.Pool.Retry.Policy),
		RetryAttempts:  cfg.Pool.Retry.Attempts,
		RetryInterval:  cfg.GetRetryInterval(),
		Failover:       replicaTargets(cfg.Database.Replicas),
		Session: auth.Target{
			CharacterEncoding: cfg.Database.CharacterEncoding,
			CurrentSchema:     cfg.Database.CurrentSchema,
			ApplicationName:   cfg.Database.ApplicationName,
		},
	}

	p, err := pool.New(poolCfg, connCfg, cred, log)
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting pool: %w", err)
	}
	defer func() {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
		defer drainCancel()
		log.Info("draining pool")
		if drainErr := p.Drain(drainCtx); drainErr != nil {
			log.Error("error draining pool", "error", drainErr)
		}
	}()

	// Verify the pool is healthy end to end before settling in.
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("initial health check: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Ping(ctx); err != nil {
				log.Warn("health check failed", "error", err)
			} else {
				stats := p.Stats()
				log.Debug("health check passed",
					"active", stats.Active,
					"idle", stats.Idle,
					"total", stats.Total,
				)
			}

		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			log.Info("dbconduit stopped")
			return nil
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses DBCONDUIT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DBCONDUIT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildTLSConfig translates the file configuration into a tls.Config.
// Returns nil when TLS is disabled so the transport dials plain TCP.
func buildTLSConfig(cfg config.TLSConfig, host string) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		ServerName:         host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicit opt-in for development
	}

	if cfg.CertFile != "" {
		pem, err := os.ReadFile(cfg.CertFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no usable certificates", cfg.CertFile)
		}
		tlsCfg.RootCAs = roots
	}

	return tlsCfg, nil
}

// replicaTargets converts configured replicas into pool failover targets.
func replicaTargets(replicas []config.HostPort) []pool.HostPort {
	targets := make([]pool.HostPort, 0, len(replicas))
	for _, r := range replicas {
		targets = append(targets, pool.HostPort{Host: r.Host, Port: r.Port})
	}
	return targets
}
