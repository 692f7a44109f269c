package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"decfeeds/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, config.Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen = ":3000"
node_url = "https://node.example.com"
fetch_concurrency = 4
fetch_timeout = "90s"
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Listen)
	assert.Equal(t, "https://node.example.com", cfg.NodeURL)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, 90*time.Second, cfg.FetchTimeoutDuration())
	// Untouched fields keep their defaults.
	assert.Equal(t, "decentiumorg", cfg.Contract)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty node url", func(c *config.Config) { c.NodeURL = "" }},
		{"bad node url", func(c *config.Config) { c.NodeURL = "not a url" }},
		{"zero concurrency", func(c *config.Config) { c.FetchConcurrency = 0 }},
		{"zero timeout", func(c *config.Config) { c.SetFetchTimeout(0) }},
		{"contract too long", func(c *config.Config) { c.Contract = "aaaaaaaaaaaaaa" }},
		{"bad log level", func(c *config.Config) { c.LogLevel = "verbose" }},
		{"bad log format", func(c *config.Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
