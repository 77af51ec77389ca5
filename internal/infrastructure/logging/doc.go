// Package logging provides the structured logger shared by every layer
// of dbconduit, from the transport up to the pool.
//
// The logger wraps log/slog: JSON output for machines, text for humans,
// level filtering, and service/version fields stamped on every entry.
// Components take a narrowed logging interface and receive a *Logger
// scoped with With:
//
//	logger := logging.New(cfg.Logging, version)
//	p, err := pool.New(poolCfg, connCfg, cred, logger.With("component", "pool"))
//
// Typical entries carry the identifiers that matter when a session
// misbehaves:
//
//	logger.Info("connection established", "host", host, "port", port, "mechanism", "ticket")
//	logger.Warn("attempt failed", "host", host, "attempt", n, "error", err)
//
// Configured through the logging block of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Security
//
// Secrets never reach a log entry at any level. Passwords, token
// signing secrets, raw tokens, and keytab contents stay out; the
// permitted identifiers are username, principal, token expiry, and the
// directory URL.
package logging
