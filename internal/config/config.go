package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"watchalong/internal/browser"
	"watchalong/internal/retry"
	"watchalong/internal/search"
	"watchalong/internal/session"
	"watchalong/internal/store"
)

// ErrMissingCredential is returned by Validate when a required secret is unset.
var ErrMissingCredential = errors.New("missing required credential")

// Config holds all watchalong configuration.
type Config struct {
	// Chat platform
	Discord DiscordConfig `yaml:"discord"`

	// Streaming site account
	Account AccountConfig `yaml:"account"`

	// Browser launch/attach settings
	Browser browser.Config `yaml:"browser"`

	// Site URLs and interaction timing
	Site SiteConfig `yaml:"site"`

	// Selectors override the built-in element locators. SelectorsFile, when
	// set, is watched and reloaded on change.
	Selectors     session.Selectors `yaml:"selectors"`
	SelectorsFile string            `yaml:"selectors_file"`

	Retry  RetryConfig  `yaml:"retry"`
	Search SearchConfig `yaml:"search"`
	Store  StoreConfig  `yaml:"store"`
	Stream StreamConfig `yaml:"stream"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DiscordConfig configures the bot account.
type DiscordConfig struct {
	Token  string `yaml:"token"`
	Prefix string `yaml:"prefix"`
	Status string `yaml:"status"`
}

// AccountConfig holds the streaming site login.
type AccountConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// SiteConfig configures the streaming site.
type SiteConfig struct {
	BaseURL           string  `yaml:"base_url"`
	LoginPath         string  `yaml:"login_path"`
	BrowsePath        string  `yaml:"browse_path"`
	ElementTimeout    string  `yaml:"element_timeout"`
	LoginTimeout      string  `yaml:"login_timeout"`
	PointerOriginX    float64 `yaml:"pointer_origin_x"`
	PointerOriginY    float64 `yaml:"pointer_origin_y"`
	AutoSelectProfile bool    `yaml:"auto_select_profile"`
}

// RetryConfig configures retried session actions.
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries"`
	Delay      string `yaml:"delay"`
}

// SearchConfig configures result rendering.
type SearchConfig struct {
	PageSize         int  `yaml:"page_size"`
	RequireThumbnail bool `yaml:"require_thumbnail"`
}

// StoreConfig configures search persistence. An empty path disables it.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (cgo), sqlite (pure Go)
	Path   string `yaml:"path"`
}

// StreamConfig configures the voice relay. CaptureCommand must write DCA
// framed Opus to stdout.
type StreamConfig struct {
	CaptureCommand []string `yaml:"capture_command"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	opts := session.DefaultOptions()
	return &Config{
		Discord: DiscordConfig{
			Prefix: "!",
			Status: "!help",
		},

		Browser: browser.DefaultConfig(),

		Site: SiteConfig{
			BaseURL:           opts.BaseURL,
			LoginPath:         opts.LoginPath,
			BrowsePath:        opts.BrowsePath,
			ElementTimeout:    "10s",
			LoginTimeout:      "30s",
			AutoSelectProfile: true,
		},

		Selectors: session.DefaultSelectors(),

		Retry: RetryConfig{
			MaxRetries: retry.DefaultMaxRetries,
			Delay:      retry.DefaultDelay.String(),
		},

		Search: SearchConfig{
			PageSize: search.DefaultPageSize,
		},

		Store: StoreConfig{
			Driver: store.DefaultDriver,
			Path:   "data/watchalong.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file, then applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.Selectors = cfg.Selectors.Merge(session.DefaultSelectors())
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("WATCHALONG_EMAIL"); v != "" {
		c.Account.Email = v
	}
	if v := os.Getenv("WATCHALONG_PASSWORD"); v != "" {
		c.Account.Password = v
	}
	if v := os.Getenv("WATCHALONG_CONTROL_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("WATCHALONG_DB"); v != "" {
		c.Store.Path = v
	}
}

// Validate validates the configuration. Missing credentials are reported
// together.
func (c *Config) Validate() error {
	var missing []string
	if c.Discord.Token == "" {
		missing = append(missing, "discord.token (DISCORD_TOKEN)")
	}
	if c.Account.Email == "" {
		missing = append(missing, "account.email (WATCHALONG_EMAIL)")
	}
	if c.Account.Password == "" {
		missing = append(missing, "account.password (WATCHALONG_PASSWORD)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}

	if c.Discord.Prefix == "" {
		return fmt.Errorf("discord.prefix must not be empty")
	}
	if err := c.Selectors.Validate(); err != nil {
		return err
	}
	switch c.Store.Driver {
	case store.DriverCGO, store.DriverPureGo:
	default:
		return fmt.Errorf("invalid store driver: %s (valid: %s, %s)", c.Store.Driver, store.DriverCGO, store.DriverPureGo)
	}
	return nil
}

// GetElementTimeout returns the element wait bound as a duration.
func (c *Config) GetElementTimeout() time.Duration {
	d, err := time.ParseDuration(c.Site.ElementTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetLoginTimeout returns how long login may take to reach the browse page.
func (c *Config) GetLoginTimeout() time.Duration {
	d, err := time.ParseDuration(c.Site.LoginTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetRetryDelay returns the delay between retried attempts.
func (c *Config) GetRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.Retry.Delay)
	if err != nil {
		return retry.DefaultDelay
	}
	return d
}

// SessionOptions returns the controller options.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		BaseURL:           c.Site.BaseURL,
		LoginPath:         c.Site.LoginPath,
		BrowsePath:        c.Site.BrowsePath,
		ElementTimeout:    c.GetElementTimeout(),
		NavigationTimeout: c.GetLoginTimeout(),
		ViewportWidth:     c.Browser.GetViewportWidth(),
		ViewportHeight:    c.Browser.GetViewportHeight(),
		PointerOriginX:    c.Site.PointerOriginX,
		PointerOriginY:    c.Site.PointerOriginY,
		RequireThumbnail:  c.Search.RequireThumbnail,
	}
}

// RetryPolicy returns the policy for retried actions.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxRetries: c.Retry.MaxRetries, Delay: c.GetRetryDelay()}
}
