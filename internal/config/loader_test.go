package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfigWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.Storage.Driver != def.Storage.Driver || cfg.SessionTTL != def.SessionTTL {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`addr: ":9090"
admin_email: "owner@example.com"
presence_lease_ttl: 30s
storage:
  driver: pebble
  path: /tmp/eten-pebble
retention:
  enabled: true
  cron: "*/5 * * * *"
  max_age: 24h
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ETEN_ADDR", ":7070")
	t.Setenv("ETEN_STORAGE_DRIVER", "memory")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Addr != ":7070" {
		t.Errorf("env should override file addr, got %q", cfg.Addr)
	}
	if cfg.Storage.Driver != StorageMemory {
		t.Errorf("env should override storage.driver, got %q", cfg.Storage.Driver)
	}
	if cfg.AdminEmail != "owner@example.com" {
		t.Errorf("admin_email = %q", cfg.AdminEmail)
	}
	if cfg.PresenceLeaseTTL != 30*time.Second {
		t.Errorf("presence_lease_ttl = %v", cfg.PresenceLeaseTTL)
	}
	if !cfg.Retention.Enabled || cfg.Retention.MaxAge != 24*time.Hour || cfg.Retention.Cron != "*/5 * * * *" {
		t.Errorf("unexpected retention: %+v", cfg.Retention)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mysql" }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: true},
		{name: "memory without path", mutate: func(c *Config) { c.Storage = StorageConfig{Driver: StorageMemory} }},
		{name: "empty jwt secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "retention without age", mutate: func(c *Config) {
			c.Retention.Enabled = true
			c.Retention.MaxAge = 0
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", Storage: StorageConfig{Driver: StorageMemory}})

	if cfg.Addr != ":1234" || cfg.Storage.Driver != StorageMemory {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Storage.Path != Default().Storage.Path {
		t.Fatalf("zero override should keep storage path, got %q", cfg.Storage.Path)
	}
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`storage:
  driver: sqlite
  path: ""
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing storage.path to fail validation")
	}

	cfg.UpdateFrom(Config{Storage: StorageConfig{Path: filepath.Join(t.TempDir(), "chat.db")}})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("path from flags should satisfy Validate: %v", err)
	}
}

func TestWarningsFlagShippedSecrets(t *testing.T) {
	cfg := Default()
	if got := cfg.Warnings(); len(got) != 2 {
		t.Fatalf("expected 2 warnings for defaults, got %v", got)
	}

	cfg.JWTSecret = "a-real-secret"
	cfg.IdentitySecret = "another-real-secret"
	if got := cfg.Warnings(); len(got) != 0 {
		t.Fatalf("expected no warnings, got %v", got)
	}
}
