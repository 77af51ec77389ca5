package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for dbconduit.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Pool     PoolConfig     `yaml:"pool"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig contains the target database server settings.
type DatabaseConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Name string `yaml:"name"`

	// Replicas are failover targets tried in order after the primary
	// exhausts its retry budget.
	Replicas []HostPort `yaml:"replicas"`

	TLS TLSConfig `yaml:"tls"`

	// Optional connection-string properties forwarded to the server.
	CharacterEncoding string `yaml:"character_encoding"`
	CurrentSchema     string `yaml:"current_schema"`
	ApplicationName   string `yaml:"application_name"`
}

// HostPort identifies a single server endpoint.
type HostPort struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TLSConfig contains TLS settings for the database transport.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// CertFile is a PEM bundle of CA certificates used to verify the server.
	// If empty, the system root pool is used.
	CertFile string `yaml:"cert_file"`

	// InsecureSkipVerify disables peer certificate validation.
	// Only intended for development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// AuthConfig selects and parameterises the authentication mechanism.
// Only the fields relevant to the selected mechanism need to be set.
type AuthConfig struct {
	// Mechanism is one of: password, ticket, token, directory.
	Mechanism string `yaml:"mechanism"`

	// Password and directory mechanisms.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Token mechanism.
	Token       string `yaml:"token"`
	TokenSecret string `yaml:"token_secret"`

	// Ticket mechanism.
	Principal   string `yaml:"principal"`
	Keytab      string `yaml:"keytab"`
	ServiceName string `yaml:"service_name"`
	Realm       string `yaml:"realm"`
	Krb5Conf    string `yaml:"krb5_conf"`
	CCache      string `yaml:"ccache"`

	// Directory mechanism.
	DirectoryURL string `yaml:"directory_url"`
}

// PoolConfig contains connection pool sizing and lifecycle settings.
// Durations are expressed in seconds unless noted otherwise.
type PoolConfig struct {
	MinSize int `yaml:"min_size"`
	MaxSize int `yaml:"max_size"`

	AcquireTimeout int `yaml:"acquire_timeout"`
	IdleTimeout    int `yaml:"idle_timeout"`
	MaxLifetime    int `yaml:"max_lifetime"`
	SweepInterval  int `yaml:"sweep_interval"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig contains the connect/authenticate retry policy.
type RetryConfig struct {
	// Policy is one of: none, simple, exponentialBackoff.
	Policy string `yaml:"policy"`

	Attempts int `yaml:"attempts"`

	// IntervalMS is the base wait between attempts, in milliseconds.
	IntervalMS int `yaml:"interval_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Valid authentication mechanism names.
const (
	MechanismPassword  = "password"
	MechanismTicket    = "ticket"
	MechanismToken     = "token"
	MechanismDirectory = "directory"
)

// Valid retry policy names.
const (
	RetryNone        = "none"
	RetrySimple      = "simple"
	RetryExponential = "exponentialBackoff"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DBCONDUIT_SECTION_KEY
// For example: DBCONDUIT_DATABASE_HOST, DBCONDUIT_AUTH_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host: "localhost",
			Port: 50000,
		},
		Auth: AuthConfig{
			Mechanism: MechanismPassword,
		},
		Pool: PoolConfig{
			MinSize:        1,
			MaxSize:        10,
			AcquireTimeout: 30,
			IdleTimeout:    300,
			MaxLifetime:    3600,
			SweepInterval:  10,
			Retry: RetryConfig{
				Policy:     RetrySimple,
				Attempts:   3,
				IntervalMS: 1000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DBCONDUIT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("DBCONDUIT_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DBCONDUIT_DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DBCONDUIT_DATABASE_NAME"); v != "" {
		cfg.Database.Name = v
	}

	// Auth - secrets should always come from the environment in production
	if v := os.Getenv("DBCONDUIT_AUTH_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("DBCONDUIT_AUTH_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("DBCONDUIT_AUTH_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("DBCONDUIT_AUTH_TOKEN_SECRET"); v != "" {
		cfg.Auth.TokenSecret = v
	}
	if v := os.Getenv("DBCONDUIT_AUTH_KEYTAB"); v != "" {
		cfg.Auth.Keytab = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errs = append(errs, "database.port must be between 1 and 65535")
	}
	if c.Database.Name == "" {
		errs = append(errs, "database.name is required")
	}
	for i, r := range c.Database.Replicas {
		if r.Host == "" {
			errs = append(errs, fmt.Sprintf("database.replicas[%d].host is required", i))
		}
		if r.Port < 1 || r.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.replicas[%d].port must be between 1 and 65535", i))
		}
	}

	// Auth validation
	switch c.Auth.Mechanism {
	case MechanismPassword:
		if c.Auth.Username == "" || c.Auth.Password == "" {
			errs = append(errs, "auth.username and auth.password are required for password mechanism")
		}
	case MechanismTicket:
		if c.Auth.Principal == "" {
			errs = append(errs, "auth.principal is required for ticket mechanism")
		}
		if c.Auth.ServiceName == "" {
			errs = append(errs, "auth.service_name is required for ticket mechanism")
		}
	case MechanismToken:
		if c.Auth.Token == "" {
			errs = append(errs, "auth.token is required for token mechanism")
		}
		if c.Auth.TokenSecret == "" {
			errs = append(errs, "auth.token_secret is required for token mechanism (set DBCONDUIT_AUTH_TOKEN_SECRET environment variable)")
		}
	case MechanismDirectory:
		if c.Auth.Username == "" || c.Auth.Password == "" {
			errs = append(errs, "auth.username and auth.password are required for directory mechanism")
		}
	default:
		errs = append(errs, fmt.Sprintf("auth.mechanism must be one of password, ticket, token, directory (got %q)", c.Auth.Mechanism))
	}

	// Pool validation
	if c.Pool.MinSize < 0 {
		errs = append(errs, "pool.min_size must not be negative")
	}
	if c.Pool.MaxSize < 1 {
		errs = append(errs, "pool.max_size must be at least 1")
	}
	if c.Pool.MinSize > c.Pool.MaxSize {
		errs = append(errs, "pool.min_size must not exceed pool.max_size")
	}
	switch c.Pool.Retry.Policy {
	case RetryNone, RetrySimple, RetryExponential:
	default:
		errs = append(errs, fmt.Sprintf("pool.retry.policy must be one of none, simple, exponentialBackoff (got %q)", c.Pool.Retry.Policy))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetAcquireTimeout returns the pool acquire timeout as a Duration.
func (c *Config) GetAcquireTimeout() time.Duration {
	return time.Duration(c.Pool.AcquireTimeout) * time.Second
}

// GetIdleTimeout returns the pool idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Pool.IdleTimeout) * time.Second
}

// GetMaxLifetime returns the connection max lifetime as a Duration.
func (c *Config) GetMaxLifetime() time.Duration {
	return time.Duration(c.Pool.MaxLifetime) * time.Second
}

// GetSweepInterval returns the background sweep interval as a Duration.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Pool.SweepInterval) * time.Second
}

// GetRetryInterval returns the base retry interval as a Duration.
func (c *Config) GetRetryInterval() time.Duration {
	return time.Duration(c.Pool.Retry.IntervalMS) * time.Millisecond
}
