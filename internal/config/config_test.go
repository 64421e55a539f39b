package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchalong/internal/retry"
	"watchalong/internal/session"
	"watchalong/internal/store"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DISCORD_TOKEN", "WATCHALONG_EMAIL", "WATCHALONG_PASSWORD", "WATCHALONG_CONTROL_URL", "WATCHALONG_DB"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "!", cfg.Discord.Prefix)
	assert.Equal(t, store.DefaultDriver, cfg.Store.Driver)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "watchalong.yaml")
	writeFile(t, path, `
discord:
  prefix: "?"
site:
  element_timeout: 3s
selectors:
  search_button: "#find"
retry:
  max_retries: 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "?", cfg.Discord.Prefix)
	assert.Equal(t, "!help", cfg.Discord.Status)
	assert.Equal(t, 3*time.Second, cfg.GetElementTimeout())
	assert.Equal(t, "#find", cfg.Selectors.SearchButton)
	assert.Equal(t, session.DefaultSelectors().LoginEmail, cfg.Selectors.LoginEmail)
	assert.Equal(t, 5, cfg.RetryPolicy().MaxRetries)
	assert.Equal(t, retry.DefaultDelay, cfg.RetryPolicy().Delay)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "discord: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "watchalong.yaml")
	writeFile(t, path, "discord:\n  token: from-file\n")

	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("WATCHALONG_EMAIL", "me@example.com")
	t.Setenv("WATCHALONG_PASSWORD", "hunter2")
	t.Setenv("WATCHALONG_CONTROL_URL", "ws://127.0.0.1:9222/devtools/browser/x")
	t.Setenv("WATCHALONG_DB", "/tmp/w.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Discord.Token)
	assert.Equal(t, "me@example.com", cfg.Account.Email)
	assert.Equal(t, "hunter2", cfg.Account.Password)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", cfg.Browser.DebuggerURL)
	assert.Equal(t, "/tmp/w.db", cfg.Store.Path)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Discord.Token = "t"
		cfg.Account.Email = "e"
		cfg.Account.Password = "p"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		wantMsg string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing token and password",
			mutate:  func(c *Config) { c.Discord.Token = ""; c.Account.Password = "" },
			wantErr: ErrMissingCredential,
			wantMsg: "discord.token",
		},
		{
			name:    "empty prefix",
			mutate:  func(c *Config) { c.Discord.Prefix = "" },
			wantMsg: "prefix",
		},
		{
			name:    "empty selector",
			mutate:  func(c *Config) { c.Selectors.AudioTrack = "" },
			wantMsg: "audio_track",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantMsg: "invalid store driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllMissingCredentials(t *testing.T) {
	err := DefaultConfig().Validate()
	require.ErrorIs(t, err, ErrMissingCredential)
	for _, want := range []string{"DISCORD_TOKEN", "WATCHALONG_EMAIL", "WATCHALONG_PASSWORD"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "watchalong.yaml")
	cfg := DefaultConfig()
	cfg.Discord.Prefix = "%"
	cfg.Stream.CaptureCommand = []string{"capture", "--dca"}
	cfg.Logging.Categories = map[string]bool{"browser": false}
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "%", loaded.Discord.Prefix)
	assert.Equal(t, cfg.Stream.CaptureCommand, loaded.Stream.CaptureCommand)
	assert.Equal(t, cfg.Logging.Categories, loaded.Logging.Categories)
	assert.Equal(t, cfg.Selectors, loaded.Selectors)
	assert.Equal(t, cfg.Site, loaded.Site)
	assert.Equal(t, cfg.Store, loaded.Store)
}

func TestDurations_FallBackOnGarbage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Site.ElementTimeout = "soon"
	cfg.Site.LoginTimeout = ""
	cfg.Retry.Delay = "x"
	assert.Equal(t, 10*time.Second, cfg.GetElementTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetLoginTimeout())
	assert.Equal(t, retry.DefaultDelay, cfg.GetRetryDelay())
}

func TestSessionOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Site.BaseURL = "https://stream.test"
	cfg.Site.PointerOriginX = 4
	cfg.Search.RequireThumbnail = true
	cfg.Browser.ViewportWidth = 800

	opts := cfg.SessionOptions()
	assert.Equal(t, "https://stream.test", opts.BaseURL)
	assert.Equal(t, 10*time.Second, opts.ElementTimeout)
	assert.Equal(t, 30*time.Second, opts.NavigationTimeout)
	assert.Equal(t, 800, opts.ViewportWidth)
	assert.Equal(t, float64(4), opts.PointerOriginX)
	assert.True(t, opts.RequireThumbnail)
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "console", Categories: map[string]bool{"chat": false}}
	assert.False(t, lc.IsCategoryEnabled("chat"))
	assert.True(t, lc.IsCategoryEnabled("session"))
	assert.True(t, (&LoggingConfig{}).IsCategoryEnabled("chat"))

	opts := lc.Options()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "console", opts.Format)
	assert.Equal(t, map[string]bool{"chat": false}, opts.Categories)
}
