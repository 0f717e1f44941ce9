package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.BaseURL)
	assert.NotEmpty(t, cfg.LoginPath)
	assert.NotEmpty(t, cfg.SearchPath)
	assert.NotEmpty(t, cfg.DetailPathFormat)
	assert.True(t, cfg.Headless)
	assert.GreaterOrEqual(t, cfg.Retry.MaxAttempts, 1)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "base_url": "https://portal.example.com",
  "login_path": "/app/login",
  "search_path": "/app/search",
  "detail_path_format": "/app/detail/%s",
  "retry": {"max_attempts": 5}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.com", cfg.BaseURL)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	// Omitted values come from defaults
	assert.Equal(t, Default().Retry.BaseDelayMs, cfg.Retry.BaseDelayMs)
	assert.Equal(t, "/app/search", cfg.ProbePath, "probe path defaults to search path")
	assert.NotEmpty(t, cfg.PolicyColumnPatterns)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.BaseURL = "https://other.example.com"
	cfg.Hybrid = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing base url", func(c *Config) { c.BaseURL = "" }, "base_url"},
		{"missing login path", func(c *Config) { c.LoginPath = "" }, "login_path"},
		{"missing search path", func(c *Config) { c.SearchPath = "" }, "search_path"},
		{"missing detail format", func(c *Config) { c.DetailPathFormat = "" }, "detail_path_format"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestURLHelpers(t *testing.T) {
	cfg := Default()
	cfg.BaseURL = "https://portal.example.com"
	cfg.LoginPath = "/amp/login"
	cfg.SearchPath = "/amp/search/advancedsearch"
	cfg.DetailPathFormat = "/amp/detail/view/%s"
	cfg.ProbePath = "/amp/search/advancedsearch"

	assert.Equal(t, "https://portal.example.com/amp/login", cfg.LoginURL())
	assert.Equal(t, "https://portal.example.com/amp/search/advancedsearch", cfg.SearchURL())
	assert.Equal(t, "https://portal.example.com/amp/search/advancedsearch", cfg.ProbeURL())
	assert.Equal(t, "https://portal.example.com/amp/detail/view/12345", cfg.DetailURL("12345"))
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv(EnvUsername, "agent")
	t.Setenv(EnvPassword, "hunter2")

	creds, err := CredentialsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "agent", creds.Username)
	assert.Equal(t, "hunter2", creds.Password)
}

func TestCredentialsFromEnvMissing(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")

	_, err := CredentialsFromEnv()
	assert.Error(t, err)
}

func TestCredentialsNeverFormatted(t *testing.T) {
	creds := Credentials{Username: "agent", Password: "hunter2"}

	for _, formatted := range []string{
		fmt.Sprintf("%v", creds),
		fmt.Sprintf("%s", creds),
		fmt.Sprintf("%#v", creds),
	} {
		assert.NotContains(t, formatted, "hunter2")
		assert.NotContains(t, formatted, "agent")
	}
}
