package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config holds the service configuration. Values come from an optional
// TOML file overridden by CLI flags and their environment variables.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `toml:"listen"`

	// NodeURL is the EOSIO chain API endpoint.
	NodeURL string `toml:"node_url"`

	// Contract is the Decentium contract account.
	Contract string `toml:"contract"`

	// MainURL is the public site used for canonical links.
	MainURL string `toml:"main_url"`

	// FeedURL is the public base of this feed service.
	FeedURL string `toml:"feed_url"`

	// FetchConcurrency caps in-flight chain calls across all requests.
	FetchConcurrency int `toml:"fetch_concurrency"`

	// FetchTimeout is the wall-clock budget for one resolution batch.
	FetchTimeout duration `toml:"fetch_timeout"`

	// BlockCacheSize is the number of blocks the chain client caches.
	BlockCacheSize int `toml:"block_cache_size"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// duration lets TOML carry Go duration strings like "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the production defaults; flags and files override.
func Default() *Config {
	return &Config{
		Listen:           ":8080",
		NodeURL:          "https://eos.greymass.com",
		Contract:         "decentiumorg",
		MainURL:          "https://decentium.org",
		FeedURL:          "https://feeds.decentium.org",
		FetchConcurrency: 8,
		FetchTimeout:     duration{5 * time.Minute},
		BlockCacheSize:   100,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration before anything is wired up.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Listen, validation.Required),
		validation.Field(&c.NodeURL, validation.Required, is.URL),
		validation.Field(&c.Contract, validation.Required, validation.Length(1, 13)),
		validation.Field(&c.MainURL, validation.Required, is.URL),
		validation.Field(&c.FeedURL, validation.Required, is.URL),
		validation.Field(&c.FetchConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.FetchTimeout, validation.By(positiveDuration)),
		validation.Field(&c.BlockCacheSize, validation.Required, validation.Min(1)),
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.Required, validation.In("text", "json")),
	)
}

func positiveDuration(value interface{}) error {
	d, ok := value.(duration)
	if !ok || d.Duration <= 0 {
		return fmt.Errorf("must be a positive duration")
	}
	return nil
}

// FetchTimeoutDuration returns the batch budget as a time.Duration.
func (c *Config) FetchTimeoutDuration() time.Duration {
	return c.FetchTimeout.Duration
}

// SetFetchTimeout sets the batch budget, used when a flag overrides the
// file value.
func (c *Config) SetFetchTimeout(d time.Duration) {
	c.FetchTimeout = duration{d}
}
