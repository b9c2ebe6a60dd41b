package engine

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/use-agent/chapterwatch/models"
)

// chromeCandidates are the executables chromedp can drive, in lookup order.
var chromeCandidates = []string{
	"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable",
}

// ChromedpEngine is a second Chromium stack driven through chromedp. Each
// attempt starts a fresh browser process, so nothing is shared with the rod
// engine or with earlier attempts.
type ChromedpEngine struct {
	identity  Identity
	proxy     string
	headless  bool
	noSandbox bool
	execPath  string
}

// NewChromedpEngine creates the engine. execPath may be empty to search PATH.
func NewChromedpEngine(id Identity, proxy, execPath string, headless, noSandbox bool) *ChromedpEngine {
	if execPath == "" {
		for _, name := range chromeCandidates {
			if p, err := exec.LookPath(name); err == nil {
				execPath = p
				break
			}
		}
	}
	return &ChromedpEngine{
		identity:  id,
		proxy:     proxy,
		headless:  headless,
		noSandbox: noSandbox,
		execPath:  execPath,
	}
}

func (e *ChromedpEngine) Name() string { return "chromedp" }

func (e *ChromedpEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.execPath == "" {
		return nil, unavailable("chromedp: no chrome executable found", exec.ErrNotFound)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(e.execPath),
		chromedp.UserAgent(e.identity.UserAgent),
		chromedp.WindowSize(e.identity.ViewportWidth, e.identity.ViewportHeight),
		chromedp.Flag("headless", e.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("lang", e.identity.Locale),
	)
	if e.proxy != "" {
		opts = append(opts, chromedp.ProxyServer(e.proxy))
	}
	if e.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	headers := network.Headers{"Accept-Language": e.identity.AcceptLanguage}
	if ref := googleReferer(req.URL); ref != "" {
		headers["Referer"] = ref
	}

	if err := chromedp.Run(bctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetTimezoneOverride(e.identity.Timezone),
		emulation.SetLocaleOverride().WithLocale(e.identity.Locale),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, e.classify(ctx, err)
	}

	if req.WaitSelector != "" {
		waitCtx, cancel := context.WithTimeout(bctx, softWait(req))
		if err := chromedp.Run(waitCtx, chromedp.WaitReady(req.WaitSelector, chromedp.ByQuery)); err != nil {
			slog.Debug("wait selector not found, proceeding", "engine", e.Name(), "selector", req.WaitSelector, "error", err)
		}
		cancel()
	}

	// chromedp has no network-idle milestone; a longer settle stands in.
	settle := req.Settle
	if req.Wait == WaitNetworkIdle {
		settle += 2 * time.Second
	}

	var html, title, location string
	if err := chromedp.Run(bctx,
		chromedp.Evaluate("("+ScrollJS+")()", nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&location),
	); err != nil {
		return nil, e.classify(ctx, err)
	}

	return &FetchResult{
		HTML:       html,
		Title:      title,
		FinalURL:   location,
		EngineName: e.Name(),
	}, nil
}

func (e *ChromedpEngine) classify(ctx context.Context, err error) *models.ScrapeError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return categorizeError(ctxErr, "chromedp: navigation")
	}
	if errors.Is(err, exec.ErrNotFound) {
		return unavailable("chromedp: start browser", err)
	}
	return categorizeError(err, "chromedp: navigation")
}
