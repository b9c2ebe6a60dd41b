package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := Load()
	assert.Equal(t, "series.yaml", cfg.Tracker.SeriesFile)
	assert.Equal(t, 600*time.Millisecond, cfg.Tracker.Pause)
	assert.Equal(t, 1, cfg.Tracker.Workers)
	assert.Equal(t, "generic", cfg.Tracker.DefaultStrategy)
	assert.Equal(t, BackendBrowser, cfg.Fetch.Backend)
	assert.Equal(t, []string{"chromium", "firefox", "webkit"}, cfg.Fetch.Engines)
	assert.Equal(t, 30*time.Second, cfg.Fetch.NavigationTimeout)
	assert.Equal(t, []string{"Image", "Font", "Media"}, cfg.Browser.BlockedResourceTypes)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FETCH_BACKEND", "AUTO")
	t.Setenv("CHAPTERWATCH_ENGINES", "Firefox, chromium,,")
	t.Setenv("CHAPTERWATCH_PAUSE", "0.25")
	t.Setenv("CHAPTERWATCH_NAV_TIMEOUT", "45s")
	t.Setenv("CHAPTERWATCH_VERBOSE", "true")
	t.Setenv("CHAPTERWATCH_API_KEYS", "KeyA,KeyB")
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("HTTP_PROXY", "http://proxy.local:3128")
	t.Setenv("DISCORD_WEBHOOK", "  https://discord.example/hook  ")

	cfg := Load()
	assert.Equal(t, BackendAuto, cfg.Fetch.Backend)
	assert.Equal(t, []string{"firefox", "chromium"}, cfg.Fetch.Engines)
	assert.Equal(t, 250*time.Millisecond, cfg.Tracker.Pause)
	assert.Equal(t, 45*time.Second, cfg.Fetch.NavigationTimeout)
	assert.True(t, cfg.Tracker.Verbose)
	assert.Equal(t, "debug", cfg.Log.Level, "verbose lowers the log level")
	assert.Equal(t, []string{"KeyA", "KeyB"}, cfg.Auth.APIKeys, "keys keep their case")
	assert.Equal(t, "http://proxy.local:3128", cfg.Fetch.Proxy)
	assert.Equal(t, cfg.Fetch.Proxy, cfg.Browser.Proxy)
	assert.Equal(t, "https://discord.example/hook", cfg.Notify.DiscordWebhook)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("CHAPTERWATCH_WORKERS=3\nCHAPTERWATCH_SERIES_FILE=data/tracked.yaml\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("CHAPTERWATCH_WORKERS")
		os.Unsetenv("CHAPTERWATCH_SERIES_FILE")
	})

	cfg := Load()
	assert.Equal(t, 3, cfg.Tracker.Workers)
	assert.Equal(t, "data/tracked.yaml", cfg.Tracker.SeriesFile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Fetch.Backend = "curl" }, "FETCH_BACKEND"},
		{"no engines", func(c *Config) { c.Fetch.Engines = nil }, "CHAPTERWATCH_ENGINES"},
		{"http needs no engines", func(c *Config) { c.Fetch.Backend = BackendHTTP; c.Fetch.Engines = nil }, ""},
		{"zero workers", func(c *Config) { c.Tracker.Workers = 0 }, "CHAPTERWATCH_WORKERS"},
		{"zero timeout", func(c *Config) { c.Fetch.NavigationTimeout = 0 }, "CHAPTERWATCH_NAV_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvDurationOr(t *testing.T) {
	t.Setenv("D", "bogus")
	assert.Equal(t, time.Second, envDurationOr("D", time.Second))
	t.Setenv("D", "-1")
	assert.Equal(t, time.Second, envDurationOr("D", time.Second))
	t.Setenv("D", "2")
	assert.Equal(t, 2*time.Second, envDurationOr("D", time.Second))
}
