package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected addr 0.0.0.0:8080, got %s", cfg.Server.Addr())
	}
	if cfg.Server.TrustProxy {
		t.Error("Expected forwarding headers untrusted by default")
	}

	// Tracking defaults derive from the 5s report interval
	if cfg.Tracking.StaleAfter() != 30*time.Second {
		t.Errorf("Expected stale threshold 30s, got %v", cfg.Tracking.StaleAfter())
	}
	if cfg.Tracking.SweepEvery() != 10*time.Second {
		t.Errorf("Expected sweep period 10s, got %v", cfg.Tracking.SweepEvery())
	}
	if cfg.Tracking.NotifyOnEvict {
		t.Error("Expected notify on evict disabled by default")
	}

	// Broadcast defaults
	if cfg.Broadcast.HeartbeatInterval != 30*time.Second {
		t.Errorf("Expected heartbeat 30s, got %v", cfg.Broadcast.HeartbeatInterval)
	}

	// Database defaults
	if cfg.Database.Enabled {
		t.Error("Expected database disabled by default")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected default postgres port 5432, got %d", cfg.Database.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got: %v", err)
	}
}

// TestLoadNonExistentFile tests that Load returns defaults when the file doesn't exist.
func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Expected no error for non-existent file, got: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Error("Did not get default config for non-existent file")
	}
}

// TestLoadValidConfig tests loading a YAML file over the defaults.
func TestLoadValidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "radar.yaml")
	yamlDoc := `
server:
  port: 9090
  host: 127.0.0.1
tracking:
  report_interval: 2s
  stale_multiplier: 4
broadcast:
  heartbeat_interval: 15s
log:
  format: console
`
	if err := os.WriteFile(configPath, []byte(yamlDoc), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected 127.0.0.1:9090, got %s", cfg.Server.Addr())
	}
	if cfg.Tracking.StaleAfter() != 8*time.Second {
		t.Errorf("Expected stale threshold 8s, got %v", cfg.Tracking.StaleAfter())
	}
	if cfg.Broadcast.HeartbeatInterval != 15*time.Second {
		t.Errorf("Expected heartbeat 15s, got %v", cfg.Broadcast.HeartbeatInterval)
	}
	// Untouched keys keep their defaults
	if cfg.Tracking.SweepMultiplier != 2 {
		t.Errorf("Expected default sweep multiplier 2, got %d", cfg.Tracking.SweepMultiplier)
	}
	if cfg.Log.Format != "console" || cfg.Log.Level != "info" {
		t.Errorf("Expected console/info logging, got %s/%s", cfg.Log.Format, cfg.Log.Level)
	}
}

// TestLoadInvalidYAML tests error handling for a malformed file.
func TestLoadInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(configPath, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write invalid config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "failed to load config file") {
		t.Errorf("Expected load error, got: %v", err)
	}
}

// TestEnvironmentOverrides tests that RADAR_* variables win over file and defaults.
func TestEnvironmentOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "radar.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 9090\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	t.Setenv("RADAR_SERVER_PORT", "7070")
	t.Setenv("RADAR_SERVER_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("RADAR_SERVER_TRUST_PROXY", "true")
	t.Setenv("RADAR_TRACKING_NOTIFY_ON_EVICT", "true")
	t.Setenv("RADAR_DATABASE_PASSWORD", "secret")
	t.Setenv("RADAR_AUTH_JWT_SECRET", "hmac")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("Expected shutdown timeout 3s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Server.TrustProxy {
		t.Error("Expected trust proxy enabled from env")
	}
	if !cfg.Tracking.NotifyOnEvict {
		t.Error("Expected notify on evict enabled from env")
	}
	if cfg.Database.Password != "secret" {
		t.Error("Expected database password from env")
	}
	if cfg.Auth.JWTSecret != "hmac" {
		t.Error("Expected JWT secret from env")
	}
}

// TestConfigPathFromEnv tests that RADAR_CONFIG names the file when no path is given.
func TestConfigPathFromEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "radar.yaml")
	if err := os.WriteFile(configPath, []byte("viewers:\n  ttl: 45s\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Viewers.TTL != 45*time.Second {
		t.Errorf("Expected viewer TTL 45s, got %v", cfg.Viewers.TTL)
	}
}

// TestValidate tests rejection of settings the runtime cannot honour.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"Zero port", func(c *Config) { c.Server.Port = 0 }},
		{"Zero report interval", func(c *Config) { c.Tracking.ReportInterval = 0 }},
		{"Stale multiplier below two", func(c *Config) { c.Tracking.StaleMultiplier = 1 }},
		{"Zero sweep multiplier", func(c *Config) { c.Tracking.SweepMultiplier = 0 }},
		{"Zero heartbeat", func(c *Config) { c.Broadcast.HeartbeatInterval = 0 }},
		{"Zero buffer", func(c *Config) { c.Broadcast.Buffer = 0 }},
		{"Zero viewer TTL", func(c *Config) { c.Viewers.TTL = 0 }},
		{"Negative rate limit", func(c *Config) { c.Ingest.RateLimit = -1 }},
		{"Rate limit without window", func(c *Config) { c.Ingest.RateWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got: %v", err)
			}
		})
	}

	t.Run("Rate limit disabled needs no window", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Ingest.RateLimit = 0
		cfg.Ingest.RateWindow = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected valid config, got: %v", err)
		}
	})
}

// TestSaveConfig tests saving configuration and loading it back.
func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "saved.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Broadcast.HeartbeatInterval = 20 * time.Second
	cfg.Database.Password = "do-not-write"

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read saved config: %v", err)
	}
	if strings.Contains(string(data), "do-not-write") {
		t.Error("Saved config must not contain the database password")
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", loaded.Server.Port)
	}
	if loaded.Broadcast.HeartbeatInterval != 20*time.Second {
		t.Errorf("Expected heartbeat 20s, got %v", loaded.Broadcast.HeartbeatInterval)
	}
}
