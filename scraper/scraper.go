// Package scraper owns the rod-driven Chromium process behind the
// "chromium" engine.
package scraper

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/chapterwatch/config"
	"github.com/use-agent/chapterwatch/engine"
	"github.com/use-agent/chapterwatch/models"
)

// Scraper manages the browser lifecycle. Every render runs in its own
// incognito context, so cookies and storage never carry over between
// attempts. It is safe for concurrent use.
type Scraper struct {
	browser     *rod.Browser
	browserCfg  config.BrowserConfig
	identity    engine.Identity
	blocked     []string
	activePages atomic.Int32
	startTime   time.Time
}

// NewScraper launches a headless Chromium with automation flags removed.
func NewScraper(browserCfg config.BrowserConfig, id engine.Identity) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), id.Locale)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeEngineUnavailable, "failed to launch browser", err)
	}
	slog.Info("browser launched", "engine", "chromium", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeEngineUnavailable, "failed to connect to browser", err)
	}

	return &Scraper{
		browser:    browser,
		browserCfg: browserCfg,
		identity:   id,
		blocked:    browserCfg.BlockedResourceTypes,
		startTime:  time.Now(),
	}, nil
}

// Active returns the number of renders in flight.
func (s *Scraper) Active() int {
	return int(s.activePages.Load())
}

// Close kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: closing browser", "uptime", time.Since(s.startTime).Round(time.Second))
	if err := s.browser.Close(); err != nil {
		slog.Warn("scraper: close browser", "error", err)
	}
}
