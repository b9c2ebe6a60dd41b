package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/chapterwatch/antibot"
	"github.com/use-agent/chapterwatch/diagnostics"
)

// Attempt records one engine navigation.
type Attempt struct {
	Engine   string
	Wait     WaitMode
	Duration time.Duration
	Size     int
	Blocked  bool
	Marker   string
	Err      error
}

// FetchOutcome is what the fetcher hands to extraction. Markup may be a
// challenge page or empty when FailureReason is set; extraction runs
// regardless.
type FetchOutcome struct {
	Markup        string
	Title         string
	FinalURL      string
	Engine        string
	FailureReason string
	Attempts      []Attempt
}

// OK reports whether an engine produced non-blocked markup.
func (o *FetchOutcome) OK() bool { return o.FailureReason == "" }

// Observer is notified after every attempt with the engine name, the
// outcome ("ok", "antibot" or a failure kind) and the attempt duration.
type Observer func(engine, outcome string, d time.Duration)

// Fetcher tries engines strictly in sequence until one renders markup that
// does not look blocked. It never runs two navigations at once for the same
// request.
type Fetcher struct {
	engines  []Engine
	detector *antibot.Detector
	memory   *DomainMemory
	sink     diagnostics.Sink
	pause    time.Duration
	observer Observer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithDetector replaces the default anti-bot detector.
func WithDetector(d *antibot.Detector) Option { return func(f *Fetcher) { f.detector = d } }

// WithDomainMemory moves a host's last winning engine to the front.
func WithDomainMemory(m *DomainMemory) Option { return func(f *Fetcher) { f.memory = m } }

// WithDiagnostics receives the markup of every exhausted, blocked engine.
func WithDiagnostics(s diagnostics.Sink) Option { return func(f *Fetcher) { f.sink = s } }

// WithEnginePause sets the pause between two engines.
func WithEnginePause(d time.Duration) Option { return func(f *Fetcher) { f.pause = d } }

// WithObserver installs an attempt observer.
func WithObserver(o Observer) Option { return func(f *Fetcher) { f.observer = o } }

// NewFetcher creates a Fetcher over engines in preference order.
func NewFetcher(engines []Engine, opts ...Option) *Fetcher {
	f := &Fetcher{
		engines:  engines,
		detector: antibot.Default(),
		sink:     diagnostics.Nop{},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Engines returns the configured engine names in preference order.
func (f *Fetcher) Engines() []string {
	names := make([]string, len(f.engines))
	for i, e := range f.engines {
		names[i] = e.Name()
	}
	return names
}

// Fetch renders req.URL. Navigation failures and anti-bot pages are
// reported through FailureReason, never as an error; the error is
// ErrAutomationUnavailable when no engine is configured or every engine
// failed to initialize.
//
// Each engine gets a DOMContentLoaded attempt and, if that markup looks
// blocked, a NetworkIdle attempt. The failure reason lists one
// "<engine>/<kind>" token per exhausted engine.
func (f *Fetcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchOutcome, error) {
	if len(f.engines) == 0 {
		return nil, ErrAutomationUnavailable
	}

	host := hostOf(req.URL)
	out := &FetchOutcome{}
	var (
		tokens      []string
		unavailable int
		best        *FetchResult
	)
	keepBest := func(r *FetchResult) {
		if r != nil && (best == nil || len(r.HTML) > len(best.HTML)) {
			best = r
		}
	}

	for i, eng := range f.order(host) {
		if i > 0 {
			sleepCtx(ctx, f.pause)
		}

		res, blocked, err := f.attempt(ctx, eng, req, WaitDOMContentLoaded, out)
		if err != nil {
			kind := Kind(err)
			if kind == KindUnavailable {
				unavailable++
			}
			tokens = append(tokens, eng.Name()+"/"+kind)
			slog.Warn("engine failed", "engine", eng.Name(), "url", req.URL, "kind", kind, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if !blocked {
			return f.success(out, host, eng, res), nil
		}
		keepBest(res)

		slog.Info("markup looks blocked, retrying with network idle", "engine", eng.Name(), "url", req.URL)
		res2, blocked2, err2 := f.attempt(ctx, eng, req, WaitNetworkIdle, out)
		if err2 == nil && !blocked2 {
			return f.success(out, host, eng, res2), nil
		}
		if err2 != nil {
			slog.Debug("network idle retry failed", "engine", eng.Name(), "url", req.URL, "error", err2)
		} else {
			keepBest(res2)
		}

		tokens = append(tokens, eng.Name()+"/antibot")
		blockedMarkup := res.HTML
		if res2 != nil && err2 == nil && len(res2.HTML) > len(blockedMarkup) {
			blockedMarkup = res2.HTML
		}
		f.sink.Dump(eng.Name(), req.Label, blockedMarkup)
		if ctx.Err() != nil {
			break
		}
	}

	if unavailable == len(f.engines) {
		return nil, fmt.Errorf("%w: %s", ErrAutomationUnavailable, strings.Join(tokens, "; "))
	}

	if best != nil {
		out.Markup = best.HTML
		out.Title = best.Title
		out.FinalURL = best.FinalURL
		out.Engine = best.EngineName
	}
	out.FailureReason = strings.Join(tokens, "; ")
	if out.FailureReason == "" {
		out.FailureReason = "blocked"
	}
	slog.Warn("all engines exhausted", "url", req.URL, "reason", out.FailureReason, "partial_bytes", len(out.Markup))
	return out, nil
}

// attempt runs one navigation with its own timeout and classifies the
// markup. blocked is only meaningful when err is nil.
func (f *Fetcher) attempt(ctx context.Context, eng Engine, req *FetchRequest, wait WaitMode, out *FetchOutcome) (*FetchResult, bool, error) {
	r := *req
	r.Wait = wait
	r.Timeout = req.timeout()

	attemptCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	start := time.Now()
	res, err := eng.Fetch(attemptCtx, &r)
	if err == nil && res == nil {
		res = &FetchResult{}
	}
	a := Attempt{Engine: eng.Name(), Wait: wait, Duration: time.Since(start), Err: err}

	outcome := "ok"
	var blocked bool
	if err != nil {
		outcome = Kind(err)
	} else {
		if res.EngineName == "" {
			res.EngineName = eng.Name()
		}
		a.Size = len(res.HTML)
		a.Marker, blocked = f.detector.Match(res.HTML)
		a.Blocked = blocked
		if blocked {
			outcome = "antibot"
			slog.Debug("anti-bot marker found", "engine", eng.Name(), "url", req.URL, "marker", a.Marker, "wait", wait.String())
		}
	}
	out.Attempts = append(out.Attempts, a)
	if f.observer != nil {
		f.observer(eng.Name(), outcome, a.Duration)
	}
	return res, blocked, err
}

func (f *Fetcher) success(out *FetchOutcome, host string, eng Engine, res *FetchResult) *FetchOutcome {
	if f.memory != nil && host != "" {
		f.memory.Set(host, eng.Name())
	}
	out.Markup = res.HTML
	out.Title = res.Title
	out.FinalURL = res.FinalURL
	out.Engine = eng.Name()
	out.FailureReason = ""
	slog.Debug("engine succeeded", "engine", eng.Name(), "url", res.FinalURL, "bytes", len(res.HTML))
	return out
}

// order returns the engines with host's remembered engine first.
func (f *Fetcher) order(host string) []Engine {
	if f.memory == nil || host == "" {
		return f.engines
	}
	remembered := f.memory.Get(host)
	if remembered == "" {
		return f.engines
	}
	ordered := make([]Engine, 0, len(f.engines))
	for _, e := range f.engines {
		if e.Name() == remembered {
			ordered = append(ordered, e)
		}
	}
	if len(ordered) == 0 {
		return f.engines
	}
	slog.Debug("domain memory hit", "domain", host, "engine", remembered)
	for _, e := range f.engines {
		if e.Name() != remembered {
			ordered = append(ordered, e)
		}
	}
	return ordered
}

// hostOf parses the hostname from a URL string.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// sleepCtx pauses for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
