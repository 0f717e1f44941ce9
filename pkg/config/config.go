// Package config holds engine configuration for the Harvest scraping
// engine. Settings are persisted as a JSON file (default
// ~/.harvest/config.json); credentials are supplied by the caller or the
// environment and are never written to disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all tunable engine settings. Zero values are filled in
// from Default before use.
type Config struct {
	// BaseURL is the root of the target portal, without trailing slash.
	BaseURL string `json:"base_url"`

	// LoginPath is the path of the login surface relative to BaseURL.
	// A post-navigation URL containing this path means the session is
	// not authenticated.
	LoginPath string `json:"login_path"`

	// SearchPath is the path of the advanced search surface.
	SearchPath string `json:"search_path"`

	// DetailPathFormat is a fmt template producing the detail view path
	// for a record identifier.
	DetailPathFormat string `json:"detail_path_format"`

	// ProbePath is a cheap authenticated-only page used to detect
	// session expiry. Defaults to SearchPath.
	ProbePath string `json:"probe_path"`

	// Headless controls whether the browser runs without a window.
	Headless bool `json:"headless"`

	// Hybrid enables the cookie-export HTTP fast path for detail pages.
	Hybrid bool `json:"hybrid"`

	// NavigationTimeoutMs is the per-navigation timeout in milliseconds.
	NavigationTimeoutMs float64 `json:"navigation_timeout_ms"`

	// Retry configures the retry controller.
	Retry RetryConfig `json:"retry"`

	// PolicyColumnPatterns are glob patterns (matched against lowercased
	// headers) identifying the policy-number column of an input dataset.
	PolicyColumnPatterns []string `json:"policy_column_patterns"`

	// NameColumnPatterns identify the company/lead name column.
	NameColumnPatterns []string `json:"name_column_patterns"`

	// LocatorFile optionally points to a YAML locator table overriding
	// the compiled-in detail field locators.
	LocatorFile string `json:"locator_file,omitempty"`
}

// RetryConfig configures bounded retry with exponential backoff.
type RetryConfig struct {
	MaxAttempts int `json:"max_attempts"`
	BaseDelayMs int `json:"base_delay_ms"`
	MaxDelayMs  int `json:"max_delay_ms"`
}

// Default returns the configuration for the ISC AMP portal.
func Default() Config {
	return Config{
		BaseURL:             "https://isc.onlinemga.com",
		LoginPath:           "/amp/login",
		SearchPath:          "/amp/search/advancedsearch",
		DetailPathFormat:    "/amp/detail/view/%s",
		ProbePath:           "/amp/search/advancedsearch",
		Headless:            true,
		Hybrid:              false,
		NavigationTimeoutMs: 30000,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMs: 1000,
			MaxDelayMs:  15000,
		},
		PolicyColumnPatterns: []string{"policy*number*", "policy_no*", "policy#"},
		NameColumnPatterns:   []string{"*lead*name*", "*company*", "*insured*", "*applicant*"},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".harvest", "config.json"), nil
}

// Load reads the config file at path, layered over Default. A missing
// file is not an error; defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// Save writes the config as indented JSON, creating parent directories.
func (c Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyDefaults fills fields a partial config file left empty.
func (c *Config) applyDefaults() {
	def := Default()
	if c.ProbePath == "" {
		c.ProbePath = c.SearchPath
	}
	if c.NavigationTimeoutMs <= 0 {
		c.NavigationTimeoutMs = def.NavigationTimeoutMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = def.Retry.BaseDelayMs
	}
	if c.Retry.MaxDelayMs <= 0 {
		c.Retry.MaxDelayMs = def.Retry.MaxDelayMs
	}
	if len(c.PolicyColumnPatterns) == 0 {
		c.PolicyColumnPatterns = def.PolicyColumnPatterns
	}
	if len(c.NameColumnPatterns) == 0 {
		c.NameColumnPatterns = def.NameColumnPatterns
	}
}

// Validate checks that the config is internally consistent.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.LoginPath == "" {
		return fmt.Errorf("login_path is required")
	}
	if c.SearchPath == "" {
		return fmt.Errorf("search_path is required")
	}
	if c.DetailPathFormat == "" {
		return fmt.Errorf("detail_path_format is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	return nil
}

// LoginURL returns the absolute login surface URL.
func (c Config) LoginURL() string { return c.BaseURL + c.LoginPath }

// SearchURL returns the absolute search surface URL.
func (c Config) SearchURL() string { return c.BaseURL + c.SearchPath }

// ProbeURL returns the absolute liveness probe URL.
func (c Config) ProbeURL() string { return c.BaseURL + c.ProbePath }

// DetailURL returns the absolute detail view URL for a record identifier.
func (c Config) DetailURL(recordID string) string {
	return c.BaseURL + fmt.Sprintf(c.DetailPathFormat, recordID)
}
