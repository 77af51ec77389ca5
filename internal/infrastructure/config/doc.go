// Package config loads and validates dbconduit configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// DBCONDUIT_* environment variable overrides. Secrets (passwords, token
// secrets) should always be supplied via the environment in production.
package config
