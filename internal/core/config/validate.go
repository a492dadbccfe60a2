package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"

	"github.com/hay-kot/criterio"

	"github.com/suevga/suvega-darkstore-sub001/internal/core/auth"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration including
// endpoint URLs, the session token and file accessibility. The configPath argument
// specifies the config file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation, then adds deeper checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateEndpoints(),
		c.validateSession(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Session.Token == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Session",
			Item:     "token",
			Message:  fmt.Sprintf("no session token; set %s before running sync", EnvToken),
		})
	}

	if c.Push.Enabled && c.Push.Token == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Push",
			Item:     "token",
			Message:  "push is enabled but no device token is configured; registration will be skipped",
		})
	}

	if c.Storage.Driver == DriverMemory {
		warnings = append(warnings, ValidationWarning{
			Category: "Storage",
			Item:     "driver",
			Message:  "memory storage does not survive restarts",
		})
	}

	return warnings
}

// validateFileAccess checks config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	return criterio.ValidateStruct(
		criterio.Run("api.base_url", c.API.BaseURL, urlWithScheme("http", "https")),
		criterio.Run("realtime.url", c.Realtime.URL, urlWithScheme("ws", "wss")),
		criterio.Run("metrics.addr", c.Metrics.Addr, hostPort),
	)
}

func urlWithScheme(schemes ...string) func(string) error {
	return func(raw string) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		if !slices.Contains(schemes, u.Scheme) {
			return fmt.Errorf("scheme %q must be one of %v", u.Scheme, schemes)
		}
		if u.Host == "" {
			return fmt.Errorf("missing host")
		}
		return nil
	}
}

func hostPort(addr string) error {
	if addr == "" {
		return nil
	}
	u, err := url.Parse("//" + addr)
	if err != nil || u.Port() == "" {
		return fmt.Errorf("%q must be host:port", addr)
	}
	return nil
}

// validateSession checks the token decodes and names a dark store.
func (c *Config) validateSession() error {
	if c.Session.Token == "" {
		return nil
	}
	var errs criterio.FieldErrorsBuilder
	if _, err := auth.FromToken(c.Session.Token, c.Session.DarkStoreID); err != nil {
		errs = errs.Append("session.token", err)
	}
	return errs.ToError()
}
