package main

import (
	"errors"
	"log/slog"

	"github.com/use-agent/chapterwatch/config"
	"github.com/use-agent/chapterwatch/diagnostics"
	"github.com/use-agent/chapterwatch/engine"
	"github.com/use-agent/chapterwatch/extract"
	"github.com/use-agent/chapterwatch/metrics"
	"github.com/use-agent/chapterwatch/scraper"
	"github.com/use-agent/chapterwatch/tracker"
)

// stack is everything a run needs, built from the configuration.
type stack struct {
	fetcher *engine.Fetcher
	tracker *tracker.Tracker
	scraper *scraper.Scraper // nil unless chromium launched
	closers []func()
}

func (s *stack) activeRenders() int {
	if s.scraper == nil {
		return 0
	}
	return s.scraper.Active()
}

// Close releases browsers in reverse order of creation.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildStack assembles the engine chain for cfg.Fetch.Backend. It fails
// only when the chain would be empty. An engine whose browser cannot start
// stays in the chain and reports itself unavailable per fetch.
func buildStack(cfg *config.Config, m *metrics.Metrics) (*stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := &stack{}
	identity := func(name string) engine.Identity {
		return engine.DefaultIdentity(name).With(engine.Identity{
			Locale:         cfg.Identity.Locale,
			Timezone:       cfg.Identity.Timezone,
			AcceptLanguage: cfg.Identity.AcceptLanguage,
		})
	}

	var engines []engine.Engine
	if cfg.Fetch.Backend != config.BackendBrowser {
		engines = append(engines, engine.NewHTTPEngine(identity("http"), cfg.Fetch.Proxy))
	}

	if cfg.Fetch.Backend != config.BackendHTTP {
		var pw *engine.PlaywrightRuntime
		for _, name := range cfg.Fetch.Engines {
			switch name {
			case "chromium":
				sc, err := scraper.NewScraper(cfg.Browser, identity(name))
				if err != nil {
					slog.Warn("chromium unavailable", "error", err)
					engines = append(engines, engine.NewRodEngine(nil))
					continue
				}
				st.scraper = sc
				st.closers = append(st.closers, sc.Close)
				engines = append(engines, engine.NewRodEngine(sc.Render))
			case "firefox", "webkit":
				if pw == nil {
					pw = &engine.PlaywrightRuntime{}
					st.closers = append(st.closers, pw.Stop)
				}
				e := engine.NewPlaywrightEngine(name, pw, identity(name), cfg.Fetch.Proxy, cfg.Browser.Headless)
				st.closers = append(st.closers, e.Close)
				engines = append(engines, e)
			case "chromedp":
				engines = append(engines, engine.NewChromedpEngine(identity(name), cfg.Fetch.Proxy,
					cfg.Browser.BrowserBin, cfg.Browser.Headless, cfg.Browser.NoSandbox))
			default:
				slog.Warn("unknown engine ignored", "engine", name)
			}
		}
	}
	if len(engines) == 0 {
		return nil, errors.New("no engine configured")
	}

	memory := engine.NewDomainMemory(cfg.Fetch.MemoryTTL)
	st.closers = append(st.closers, memory.Stop)

	opts := []engine.Option{
		engine.WithDomainMemory(memory),
		engine.WithEnginePause(cfg.Fetch.EnginePause),
		engine.WithObserver(m.ObserveAttempt),
	}
	if cfg.Tracker.Verbose {
		opts = append(opts, engine.WithDiagnostics(diagnostics.NewFileSink(cfg.Tracker.DumpDir)))
	}
	st.fetcher = engine.NewFetcher(engines, opts...)

	registry := extract.NewRegistry()
	if err := registry.SetDefault(cfg.Tracker.DefaultStrategy); err != nil {
		st.Close()
		return nil, err
	}

	st.tracker = tracker.New(st.fetcher, registry, tracker.Options{
		Pause:       cfg.Tracker.Pause,
		Workers:     cfg.Tracker.Workers,
		Timeout:     cfg.Fetch.NavigationTimeout,
		Settle:      cfg.Fetch.Settle,
		CacheMaxAge: cfg.Tracker.CacheMaxAge,
	}, m)

	slog.Info("engine chain ready", "backend", cfg.Fetch.Backend, "engines", st.fetcher.Engines())
	return st, nil
}
