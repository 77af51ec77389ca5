package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  host: "db.example.com"
  port: 50001
  name: "SAMPLE"
auth:
  mechanism: "password"
  username: "dbuser"
  password: "dbpass"
pool:
  min_size: 2
  max_size: 8
  acquire_timeout: 15
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Host != "db.example.com" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "db.example.com")
	}
	if cfg.Database.Port != 50001 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 50001)
	}
	if cfg.Pool.MinSize != 2 || cfg.Pool.MaxSize != 8 {
		t.Errorf("Pool sizing = %d/%d, want 2/8", cfg.Pool.MinSize, cfg.Pool.MaxSize)
	}
	if got := cfg.GetAcquireTimeout(); got != 15*time.Second {
		t.Errorf("GetAcquireTimeout() = %v, want 15s", got)
	}

	// Defaults survive partial files.
	if cfg.Pool.SweepInterval != 10 {
		t.Errorf("Pool.SweepInterval = %d, want default 10", cfg.Pool.SweepInterval)
	}
	if cfg.Pool.Retry.Policy != RetrySimple {
		t.Errorf("Pool.Retry.Policy = %q, want default %q", cfg.Pool.Retry.Policy, RetrySimple)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	content := `
database:
  host: "db.example.com"
  name: "SAMPLE"
auth:
  mechanism: "password"
  username: "dbuser"
  password: "from-file"
`
	t.Setenv("DBCONDUIT_AUTH_PASSWORD", "from-env")
	t.Setenv("DBCONDUIT_DATABASE_PORT", "60000")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.Password != "from-env" {
		t.Errorf("Auth.Password = %q, want env override", cfg.Auth.Password)
	}
	if cfg.Database.Port != 60000 {
		t.Errorf("Database.Port = %d, want env override 60000", cfg.Database.Port)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Database.Name = "SAMPLE"
		cfg.Auth.Username = "dbuser"
		cfg.Auth.Password = "dbpass"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid password config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing database name",
			mutate:  func(c *Config) { c.Database.Name = "" },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Database.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "min size above max size",
			mutate:  func(c *Config) { c.Pool.MinSize = 5; c.Pool.MaxSize = 2 },
			wantErr: true,
		},
		{
			name:    "unknown mechanism",
			mutate:  func(c *Config) { c.Auth.Mechanism = "kerberos5" },
			wantErr: true,
		},
		{
			name:    "unknown retry policy",
			mutate:  func(c *Config) { c.Pool.Retry.Policy = "jittered" },
			wantErr: true,
		},
		{
			name: "ticket mechanism requires principal",
			mutate: func(c *Config) {
				c.Auth.Mechanism = MechanismTicket
				c.Auth.ServiceName = "db2svc"
			},
			wantErr: true,
		},
		{
			name: "token mechanism requires secret",
			mutate: func(c *Config) {
				c.Auth.Mechanism = MechanismToken
				c.Auth.Token = "a.b.c"
				c.Auth.TokenSecret = ""
			},
			wantErr: true,
		},
		{
			name: "replica missing host",
			mutate: func(c *Config) {
				c.Database.Replicas = []HostPort{{Host: "", Port: 50000}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
