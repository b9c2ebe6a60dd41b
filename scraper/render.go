package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/chapterwatch/engine"
	"github.com/use-agent/chapterwatch/models"
)

// Render is the engine.RenderFunc behind the chromium engine.
//
// Lifecycle:
//
//  1. Timeout guard     hard deadline on the whole attempt
//  2. Incognito target  fresh browser context, disposed on return
//  3. Identity          stealth JS, UA, locale, timezone, viewport, headers
//  4. Hijack mount      block images, fonts and media
//  5. Lifecycle waiter  registered before Navigate so no event is missed
//  6. Navigate + wait   DOMContentLoaded or network idle
//  7. Soft selector     optional, a miss is not an error
//  8. Scroll + settle   lazy chapter lists render on scroll
//  9. Capture           page HTML, title, final URL
//
// Steps 3 to 5 must happen before Navigate; stealth JS and the hijack
// router only affect navigations started after they are installed.
func (s *Scraper) Render(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = engine.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	incognito, err := s.browser.Incognito()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create incognito context", err)
	}
	defer func() {
		if cerr := incognito.Close(); cerr != nil {
			slog.Debug("cleanup: failed to dispose incognito context", "error", cerr)
		}
	}()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	s.applyIdentity(page, req.URL)

	if router := setupHijack(page, s.blocked); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	event := proto.PageLifecycleEventNameDOMContentLoaded
	if req.Wait == engine.WaitNetworkIdle {
		event = proto.PageLifecycleEventNameNetworkIdle
	}
	waitLoaded := p.WaitNavigation(event)

	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(ctx, err, "navigation to target URL failed")
	}
	waitLoaded()
	if err := ctx.Err(); err != nil {
		return nil, categorizeError(ctx, err, "page did not reach "+req.Wait.String())
	}

	if req.WaitSelector != "" {
		if _, serr := p.Timeout(softWait(timeout)).Element(req.WaitSelector); serr != nil {
			slog.Debug("wait selector not found, proceeding", "engine", "chromium", "selector", req.WaitSelector, "error", serr)
		}
	}

	if _, serr := p.Eval(engine.ScrollJS); serr != nil {
		slog.Debug("scroll failed", "engine", "chromium", "error", serr)
	}
	if req.Settle > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(req.Settle):
		}
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(ctx, err, "failed to extract page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &engine.FetchResult{
		HTML:       rawHTML,
		Title:      evalStringOrEmpty(p, `() => document.title`),
		StatusCode: navigationStatus(p),
		FinalURL:   finalURL,
	}, nil
}

// applyIdentity installs stealth and the browser persona. Failures degrade
// the disguise but never abort the attempt.
func (s *Scraper) applyIdentity(page *rod.Page, target string) {
	id := s.identity
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      id.UserAgent,
		AcceptLanguage: id.AcceptLanguage,
	}); err != nil {
		slog.Debug("user agent override failed", "error", err)
	}
	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: id.Timezone}).Call(page); err != nil {
		slog.Debug("timezone override failed", "error", err)
	}
	if err := (proto.EmulationSetLocaleOverride{Locale: id.Locale}).Call(page); err != nil {
		slog.Debug("locale override failed", "error", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             id.ViewportWidth,
		Height:            id.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Debug("viewport override failed", "error", err)
	}

	headers := map[string]string{"Accept-Language": id.AcceptLanguage}
	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)
}

// navigationStatus reads the HTTP status from the Navigation Timing API,
// which needs no CDP event listeners.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func softWait(timeout time.Duration) time.Duration {
	d := timeout / 3
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	return d
}
