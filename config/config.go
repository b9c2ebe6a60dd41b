package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fetch backends selectable with FETCH_BACKEND.
const (
	BackendBrowser = "browser" // automation engines only
	BackendHTTP    = "http"    // the utls HTTP engine only
	BackendAuto    = "auto"    // HTTP engine first, then the browsers
)

// Config holds all application configuration.
type Config struct {
	Tracker   TrackerConfig
	Fetch     FetchConfig
	Browser   BrowserConfig
	Identity  IdentityConfig
	Notify    NotifyConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// TrackerConfig controls a tracking run.
type TrackerConfig struct {
	// SeriesFile is the YAML store holding the tracked series.
	SeriesFile string // default: "series.yaml"

	// Pause is the gap between consecutive series.
	Pause time.Duration // default: 600ms

	// Workers > 1 processes series in parallel with per-host pacing.
	Workers int // default: 1

	// DefaultStrategy names the extraction strategy for unknown sites.
	DefaultStrategy string // default: "generic"

	// CacheMaxAge bounds reuse of a fetched page within a run.
	CacheMaxAge time.Duration // default: 10m

	// Verbose enables debug logs and diagnostic dumps.
	Verbose bool

	// DumpDir is where diagnostic dumps are written in verbose mode.
	DumpDir string // default: "debug"
}

// FetchConfig controls the engine chain.
type FetchConfig struct {
	// Backend is one of BackendBrowser, BackendHTTP, BackendAuto.
	Backend string // default: "browser"

	// Engines is the ordered automation engine list.
	Engines []string // default: [chromium, firefox, webkit]

	// NavigationTimeout bounds a single engine attempt.
	NavigationTimeout time.Duration // default: 30s

	// Settle is the pause after scrolling before capture.
	Settle time.Duration // default: 1.5s

	// EnginePause is the gap between engines of one fetch.
	EnginePause time.Duration // default: 400ms

	// MemoryTTL is how long a host remembers its winning engine.
	MemoryTTL time.Duration // default: 6h

	// Proxy is taken from HTTPS_PROXY, then HTTP_PROXY.
	Proxy string
}

// BrowserConfig controls the locally launched browsers.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is forwarded from FetchConfig.Proxy.
	Proxy string

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// IdentityConfig overrides the browser persona.
type IdentityConfig struct {
	Locale         string // default: es-ES
	Timezone       string // default: Europe/Madrid
	AcceptLanguage string // default: es-ES,es;q=0.9,en;q=0.8
}

// NotifyConfig controls the run report delivery.
type NotifyConfig struct {
	// DiscordWebhook disables notification when empty.
	DiscordWebhook string
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads a .env file when present, then configuration from environment
// variables with sane defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: ignoring unreadable .env", "error", err)
	}

	verbose := envBoolOr("CHAPTERWATCH_VERBOSE", false)
	engines := envSliceOr("CHAPTERWATCH_ENGINES", []string{"chromium", "firefox", "webkit"})
	for i, e := range engines {
		engines[i] = strings.ToLower(e)
	}
	proxy := envOr("HTTPS_PROXY", os.Getenv("HTTP_PROXY"))

	logLevel := envOr("CHAPTERWATCH_LOG_LEVEL", "info")
	if verbose {
		logLevel = "debug"
	}

	return &Config{
		Tracker: TrackerConfig{
			SeriesFile:      envOr("CHAPTERWATCH_SERIES_FILE", "series.yaml"),
			Pause:           envDurationOr("CHAPTERWATCH_PAUSE", 600*time.Millisecond),
			Workers:         envIntOr("CHAPTERWATCH_WORKERS", 1),
			DefaultStrategy: envOr("CHAPTERWATCH_DEFAULT_STRATEGY", "generic"),
			CacheMaxAge:     envDurationOr("CHAPTERWATCH_CACHE_MAX_AGE", 10*time.Minute),
			Verbose:         verbose,
			DumpDir:         envOr("CHAPTERWATCH_DUMP_DIR", "debug"),
		},
		Fetch: FetchConfig{
			Backend:           strings.ToLower(envOr("FETCH_BACKEND", BackendBrowser)),
			Engines:           engines,
			NavigationTimeout: envDurationOr("CHAPTERWATCH_NAV_TIMEOUT", 30*time.Second),
			Settle:            envDurationOr("CHAPTERWATCH_SETTLE", 1500*time.Millisecond),
			EnginePause:       envDurationOr("CHAPTERWATCH_ENGINE_PAUSE", 400*time.Millisecond),
			MemoryTTL:         envDurationOr("CHAPTERWATCH_MEMORY_TTL", 6*time.Hour),
			Proxy:             proxy,
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("CHAPTERWATCH_HEADLESS", true),
			NoSandbox:  envBoolOr("CHAPTERWATCH_NO_SANDBOX", false),
			BrowserBin: os.Getenv("CHAPTERWATCH_BROWSER_BIN"),
			Proxy:      proxy,
			BlockedResourceTypes: envSliceOr("CHAPTERWATCH_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Identity: IdentityConfig{
			Locale:         os.Getenv("CHAPTERWATCH_LOCALE"),
			Timezone:       os.Getenv("CHAPTERWATCH_TIMEZONE"),
			AcceptLanguage: os.Getenv("CHAPTERWATCH_ACCEPT_LANGUAGE"),
		},
		Notify: NotifyConfig{
			DiscordWebhook: strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK")),
		},
		Server: ServerConfig{
			Host: envOr("CHAPTERWATCH_HOST", "0.0.0.0"),
			Port: envIntOr("CHAPTERWATCH_PORT", 8080),
			Mode: envOr("CHAPTERWATCH_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("CHAPTERWATCH_AUTH_ENABLED", true),
			APIKeys: envSliceOr("CHAPTERWATCH_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CHAPTERWATCH_RATE_RPS", 2.0),
			Burst:             envIntOr("CHAPTERWATCH_RATE_BURST", 5),
		},
		Log: LogConfig{
			Level:  logLevel,
			Format: envOr("CHAPTERWATCH_LOG_FORMAT", "text"),
		},
	}
}

// Validate reports settings that cannot produce a working run.
func (c *Config) Validate() error {
	switch c.Fetch.Backend {
	case BackendBrowser, BackendHTTP, BackendAuto:
	default:
		return fmt.Errorf("config: FETCH_BACKEND must be %q, %q or %q, got %q",
			BackendBrowser, BackendHTTP, BackendAuto, c.Fetch.Backend)
	}
	if c.Fetch.Backend != BackendHTTP && len(c.Fetch.Engines) == 0 {
		return errors.New("config: CHAPTERWATCH_ENGINES is empty")
	}
	if c.Tracker.Workers < 1 {
		return fmt.Errorf("config: CHAPTERWATCH_WORKERS must be at least 1, got %d", c.Tracker.Workers)
	}
	if c.Fetch.NavigationTimeout <= 0 {
		return fmt.Errorf("config: CHAPTERWATCH_NAV_TIMEOUT must be positive, got %s", c.Fetch.NavigationTimeout)
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDurationOr accepts Go durations ("750ms") and plain seconds ("0.6").
func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
