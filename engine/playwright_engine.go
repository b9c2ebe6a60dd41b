package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/use-agent/chapterwatch/models"
)

// PlaywrightRuntime owns the Playwright driver process shared by the
// firefox and webkit engines. The driver starts on first use.
type PlaywrightRuntime struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	err     error
	started bool
}

func (r *PlaywrightRuntime) get() (*playwright.Playwright, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		r.started = true
		r.pw, r.err = playwright.Run()
		if r.err != nil {
			slog.Warn("playwright driver unavailable", "error", r.err)
		}
	}
	return r.pw, r.err
}

// Stop terminates the driver if it was started.
func (r *PlaywrightRuntime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil {
			slog.Warn("playwright stop failed", "error", err)
		}
		r.pw = nil
	}
}

// blockedPlaywrightTypes mirrors the rod hijack list.
var blockedPlaywrightTypes = map[string]struct{}{
	"image": {}, "font": {}, "media": {},
}

// PlaywrightEngine renders pages with Playwright's Firefox or WebKit build.
// Every attempt gets a fresh BrowserContext so cookies and storage never
// leak between attempts.
type PlaywrightEngine struct {
	name     string
	runtime  *PlaywrightRuntime
	identity Identity
	proxy    string
	headless bool

	mu        sync.Mutex
	browser   playwright.Browser
	launchErr error
}

// NewPlaywrightEngine creates an engine for browserType "firefox" or "webkit".
func NewPlaywrightEngine(browserType string, rt *PlaywrightRuntime, id Identity, proxy string, headless bool) *PlaywrightEngine {
	return &PlaywrightEngine{
		name:     browserType,
		runtime:  rt,
		identity: id,
		proxy:    proxy,
		headless: headless,
	}
}

func (e *PlaywrightEngine) Name() string { return e.name }

// launch starts the browser once. A launch failure is remembered so a run
// does not pay the startup cost for every series.
func (e *PlaywrightEngine) launch() (playwright.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil || e.launchErr != nil {
		return e.browser, e.launchErr
	}

	pw, err := e.runtime.get()
	if err != nil {
		e.launchErr = unavailable(e.name+": playwright driver", err)
		return nil, e.launchErr
	}

	var bt playwright.BrowserType
	switch e.name {
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		e.launchErr = unavailable(fmt.Sprintf("unknown playwright browser %q", e.name), nil)
		return nil, e.launchErr
	}

	opts := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(e.headless)}
	if e.proxy != "" {
		opts.Proxy = &playwright.Proxy{Server: e.proxy}
	}
	browser, err := bt.Launch(opts)
	if err != nil {
		e.launchErr = unavailable(e.name+": launch", err)
		return nil, e.launchErr
	}
	slog.Info("browser launched", "engine", e.name, "version", browser.Version())
	e.browser = browser
	return browser, nil
}

func (e *PlaywrightEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	browser, err := e.launch()
	if err != nil {
		return nil, err
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:  playwright.String(e.identity.UserAgent),
		Locale:     playwright.String(e.identity.Locale),
		TimezoneId: playwright.String(e.identity.Timezone),
		Viewport: &playwright.Size{
			Width:  e.identity.ViewportWidth,
			Height: e.identity.ViewportHeight,
		},
		ExtraHttpHeaders: map[string]string{
			"Accept-Language": e.identity.AcceptLanguage,
			"Referer":         googleReferer(req.URL),
		},
	})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, e.name+": new context", err)
	}
	// Closing the context aborts any pending navigation, which is how ctx
	// cancellation reaches the synchronous Playwright API.
	var closeOnce sync.Once
	closeCtx := func() { closeOnce.Do(func() { _ = bctx.Close() }) }
	defer closeCtx()
	stop := context.AfterFunc(ctx, closeCtx)
	defer stop()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, e.name+": new page", err)
	}
	_ = page.Route("**/*", func(route playwright.Route) {
		if _, blocked := blockedPlaywrightTypes[route.Request().ResourceType()]; blocked {
			_ = route.Abort("blockedbyclient")
			return
		}
		_ = route.Continue()
	})

	waitUntil := playwright.WaitUntilStateDomcontentloaded
	if req.Wait == WaitNetworkIdle {
		waitUntil = playwright.WaitUntilStateNetworkidle
	}
	resp, err := page.Goto(req.URL, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   playwright.Float(float64(req.timeout().Milliseconds())),
	})
	if err != nil {
		return nil, e.classify(ctx, err, "navigation to target URL failed")
	}

	if req.WaitSelector != "" {
		if werr := page.Locator(req.WaitSelector).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(float64(softWait(req).Milliseconds())),
		}); werr != nil {
			slog.Debug("wait selector not found, proceeding", "engine", e.name, "selector", req.WaitSelector, "error", werr)
		}
	}
	if _, serr := page.Evaluate(ScrollJS); serr != nil {
		slog.Debug("scroll failed", "engine", e.name, "error", serr)
	}
	sleepCtx(ctx, req.Settle)

	content, err := page.Content()
	if err != nil {
		return nil, e.classify(ctx, err, "failed to read page content")
	}
	title, _ := page.Title()

	status := 0
	if resp != nil {
		status = resp.Status()
	}
	return &FetchResult{
		HTML:       content,
		Title:      title,
		StatusCode: status,
		FinalURL:   page.URL(),
		EngineName: e.name,
	}, nil
}

func (e *PlaywrightEngine) classify(ctx context.Context, err error, msg string) *models.ScrapeError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return categorizeError(ctxErr, msg)
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	}
	if errors.Is(err, playwright.ErrTargetClosed) {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, msg, err)
	}
	return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
}

// Close shuts the browser down. The shared runtime is stopped separately.
func (e *PlaywrightEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil {
		_ = e.browser.Close()
		e.browser = nil
	}
}

// softWait bounds the optional selector wait.
func softWait(req *FetchRequest) time.Duration {
	d := req.timeout() / 3
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}
