// Package config handles configuration loading and validation for darkstore.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverJSONFile = "jsonfile"
	DriverMemory   = "memory"
)

// Environment variables that override secrets and endpoints from the file.
const (
	EnvToken       = "DARKSTORE_TOKEN"
	EnvPushToken   = "DARKSTORE_PUSH_TOKEN"
	EnvDarkStoreID = "DARKSTORE_DARK_STORE_ID"
	EnvAPIURL      = "DARKSTORE_API_URL"
	EnvRealtimeURL = "DARKSTORE_REALTIME_URL"
)

// Config holds the application configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Session  SessionConfig  `yaml:"session"`
	Storage  StorageConfig  `yaml:"storage"`
	Push     PushConfig     `yaml:"push"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	DataDir  string         `yaml:"-"` // set by caller, not from config file
}

// APIConfig points at the REST backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RealtimeConfig controls the order events connection.
type RealtimeConfig struct {
	URL                string        `yaml:"url"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PongWait           time.Duration `yaml:"pong_wait"`
	BackoffInitial     time.Duration `yaml:"backoff_initial"`
	BackoffMax         time.Duration `yaml:"backoff_max"`
	RefreshOnReconnect bool          `yaml:"refresh_on_reconnect"`
	RiderTTL           time.Duration `yaml:"rider_ttl"` // 0 keeps riders until logout
}

// SessionConfig identifies the operator. Token is normally supplied through
// DARKSTORE_TOKEN rather than the file.
type SessionConfig struct {
	Token       string `yaml:"token"`
	DarkStoreID string `yaml:"dark_store_id"` // overrides the token's darkStoreId claim
}

// StorageConfig selects the durable backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// PushConfig controls push registration.
type PushConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000/api/v1",
			Timeout: 15 * time.Second,
		},
		Realtime: RealtimeConfig{
			URL:            "ws://localhost:8000/ws",
			PingInterval:   54 * time.Second,
			PongWait:       60 * time.Second,
			BackoffInitial: time.Second,
			BackoffMax:     30 * time.Second,
			RiderTTL:       2 * time.Hour,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
		},
		Push: PushConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
// Environment variables are applied after the file.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Session.Token, EnvToken)
	set(&c.Session.DarkStoreID, EnvDarkStoreID)
	set(&c.Push.Token, EnvPushToken)
	set(&c.API.BaseURL, EnvAPIURL)
	set(&c.Realtime.URL, EnvRealtimeURL)
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = defaults.API.Timeout
	}
	if c.Realtime.URL == "" {
		c.Realtime.URL = defaults.Realtime.URL
	}
	if c.Realtime.PongWait == 0 {
		c.Realtime.PongWait = defaults.Realtime.PongWait
	}
	if c.Realtime.PingInterval == 0 {
		c.Realtime.PingInterval = (c.Realtime.PongWait * 9) / 10
	}
	if c.Realtime.BackoffInitial == 0 {
		c.Realtime.BackoffInitial = defaults.Realtime.BackoffInitial
	}
	if c.Realtime.BackoffMax == 0 {
		c.Realtime.BackoffMax = defaults.Realtime.BackoffMax
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}

	if c.Realtime.PongWait <= 0 {
		return fmt.Errorf("realtime.pong_wait must be positive")
	}
	if c.Realtime.PingInterval <= 0 || c.Realtime.PingInterval >= c.Realtime.PongWait {
		return fmt.Errorf("realtime.ping_interval must be positive and less than realtime.pong_wait")
	}
	if c.Realtime.BackoffInitial <= 0 {
		return fmt.Errorf("realtime.backoff_initial must be positive")
	}
	if c.Realtime.BackoffMax < c.Realtime.BackoffInitial {
		return fmt.Errorf("realtime.backoff_max must be at least realtime.backoff_initial")
	}

	if c.Realtime.RiderTTL < 0 {
		return fmt.Errorf("realtime.rider_ttl cannot be negative")
	}

	if !isValidDriver(c.Storage.Driver) {
		return fmt.Errorf("storage.driver %q is not one of %s, %s, %s", c.Storage.Driver, DriverSQLite, DriverJSONFile, DriverMemory)
	}

	return nil
}

// StateDir returns the directory used by the jsonfile storage driver.
func (c *Config) StateDir() string {
	return filepath.Join(c.DataDir, "state")
}

// LogFile returns the default log file path.
func (c *Config) LogFile() string {
	return filepath.Join(c.DataDir, "logs", "darkstore.log")
}

func isValidDriver(driver string) bool {
	switch driver {
	case DriverSQLite, DriverJSONFile, DriverMemory:
		return true
	default:
		return false
	}
}
