package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. RADAR_SERVER_PORT.
const EnvPrefix = "RADAR_"

// ConfigPathEnvVar names a YAML config file when no path is given.
const ConfigPathEnvVar = "RADAR_CONFIG"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server" yaml:"server"`
	Tracking  TrackingConfig  `koanf:"tracking" yaml:"tracking"`
	Broadcast BroadcastConfig `koanf:"broadcast" yaml:"broadcast"`
	Viewers   ViewersConfig   `koanf:"viewers" yaml:"viewers"`
	Ingest    IngestConfig    `koanf:"ingest" yaml:"ingest"`
	Database  DatabaseConfig  `koanf:"database" yaml:"database"`
	Auth      AuthConfig      `koanf:"auth" yaml:"auth"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the server bind address (default: "0.0.0.0")
	Host string `koanf:"host" yaml:"host"`

	// Port is the HTTP server port (default: 8080)
	Port int `koanf:"port" yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`

	// TrustProxy honours X-Forwarded-For and X-Real-IP (default: false)
	TrustProxy bool `koanf:"trust_proxy" yaml:"trust_proxy"`
}

// TrackingConfig controls record lifetime in the position store.
// Staleness and sweep period are multiples of the producer report interval.
type TrackingConfig struct {
	// ReportInterval is the producers' fixed reporting cadence (default: 5s)
	ReportInterval time.Duration `koanf:"report_interval" yaml:"report_interval"`

	// StaleMultiplier sets the staleness threshold in report intervals.
	// Must be at least 2 so one missed report never evicts (default: 6)
	StaleMultiplier int `koanf:"stale_multiplier" yaml:"stale_multiplier"`

	// SweepMultiplier sets the sweep period in report intervals (default: 2)
	SweepMultiplier int `koanf:"sweep_multiplier" yaml:"sweep_multiplier"`

	// NotifyOnEvict publishes a snapshot after a sweep removed records
	NotifyOnEvict bool `koanf:"notify_on_evict" yaml:"notify_on_evict"`
}

// BroadcastConfig controls the push endpoints.
type BroadcastConfig struct {
	// HeartbeatInterval is the keep-alive period (default: 30s)
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" yaml:"heartbeat_interval"`

	// Buffer is the number of pending messages per connection (default: 8)
	Buffer int `koanf:"buffer" yaml:"buffer"`
}

// ViewersConfig controls viewer presence tracking.
type ViewersConfig struct {
	// TTL is how long a viewer counts after its last heartbeat (default: 15s)
	TTL time.Duration `koanf:"ttl" yaml:"ttl"`
}

// IngestConfig controls the position ingestion endpoint.
type IngestConfig struct {
	// RateLimit is the per-IP request budget per RateWindow; 0 disables
	// (default: 120)
	RateLimit int `koanf:"rate_limit" yaml:"rate_limit"`

	// RateWindow is the rate limit window (default: 1m)
	RateWindow time.Duration `koanf:"rate_window" yaml:"rate_window"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Enabled turns on the Postgres role lookup (default: false)
	Enabled bool `koanf:"enabled" yaml:"enabled"`

	// Host is the database server hostname
	Host string `koanf:"host" yaml:"host"`

	// Port is the database server port
	Port int `koanf:"port" yaml:"port"`

	// Database is the database name
	Database string `koanf:"database" yaml:"database"`

	// Username for database authentication
	Username string `koanf:"username" yaml:"username"`

	// Password for database authentication (set RADAR_DATABASE_PASSWORD)
	Password string `koanf:"password" yaml:"-"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `koanf:"ssl_mode" yaml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `koanf:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `koanf:"max_idle_conns" yaml:"max_idle_conns"`
}

// AuthConfig configures session token parsing for capability lookups.
type AuthConfig struct {
	// JWTSecret is the HMAC secret; empty disables token parsing
	// (set RADAR_AUTH_JWT_SECRET)
	JWTSecret string `koanf:"jwt_secret" yaml:"-"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	// Level is trace, debug, info, warn or error (default: info)
	Level string `koanf:"level" yaml:"level"`

	// Format is json or console (default: json)
	Format string `koanf:"format" yaml:"format"`
}

// StaleAfter returns the staleness threshold.
func (c TrackingConfig) StaleAfter() time.Duration {
	return c.ReportInterval * time.Duration(c.StaleMultiplier)
}

// SweepEvery returns the sweep period.
func (c TrackingConfig) SweepEvery() time.Duration {
	return c.ReportInterval * time.Duration(c.SweepMultiplier)
}

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Tracking: TrackingConfig{
			ReportInterval:  5 * time.Second,
			StaleMultiplier: 6,
			SweepMultiplier: 2,
		},
		Broadcast: BroadcastConfig{
			HeartbeatInterval: 30 * time.Second,
			Buffer:            8,
		},
		Viewers: ViewersConfig{
			TTL: 15 * time.Second,
		},
		Ingest: IngestConfig{
			RateLimit:  120,
			RateWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "atcradar",
			Username:     "atcradar",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// $RADAR_CONFIG when path is empty; a missing file is skipped) and RADAR_*
// environment variables, in increasing priority.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransformFunc maps RADAR_SECTION_SOME_KEY to section.some_key.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate rejects settings the runtime cannot honour.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Tracking.ReportInterval <= 0 {
		errs = append(errs, errors.New("tracking.report_interval must be positive"))
	}
	if c.Tracking.StaleMultiplier < 2 {
		errs = append(errs, fmt.Errorf("tracking.stale_multiplier %d must be at least 2", c.Tracking.StaleMultiplier))
	}
	if c.Tracking.SweepMultiplier <= 0 {
		errs = append(errs, errors.New("tracking.sweep_multiplier must be positive"))
	}
	if c.Broadcast.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("broadcast.heartbeat_interval must be positive"))
	}
	if c.Broadcast.Buffer <= 0 {
		errs = append(errs, errors.New("broadcast.buffer must be positive"))
	}
	if c.Viewers.TTL <= 0 {
		errs = append(errs, errors.New("viewers.ttl must be positive"))
	}
	if c.Ingest.RateLimit < 0 {
		errs = append(errs, errors.New("ingest.rate_limit must not be negative"))
	}
	if c.Ingest.RateLimit > 0 && c.Ingest.RateWindow <= 0 {
		errs = append(errs, errors.New("ingest.rate_window must be positive when rate limiting"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Save writes the configuration to a YAML file. Secrets are omitted.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
