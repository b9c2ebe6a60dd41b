// Package tracker runs the per-series pipeline: validate the URL, fetch,
// extract, decide, and fold the results into a report.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/use-agent/chapterwatch/cache"
	"github.com/use-agent/chapterwatch/decision"
	"github.com/use-agent/chapterwatch/engine"
	"github.com/use-agent/chapterwatch/extract"
	"github.com/use-agent/chapterwatch/metrics"
	"github.com/use-agent/chapterwatch/models"
	"github.com/use-agent/chapterwatch/store"
)

// Fetcher is the part of engine.Fetcher the tracker needs.
type Fetcher interface {
	Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchOutcome, error)
}

// Options tune a Tracker. Zero values fall back to the defaults noted.
type Options struct {
	// Pause separates consecutive series in sequential mode and consecutive
	// requests to one host in parallel mode.
	Pause time.Duration // default: 0

	// Workers > 1 processes series concurrently.
	Workers int // default: 1

	// Timeout bounds each engine attempt.
	Timeout time.Duration // default: engine.DefaultTimeout

	// Settle is the post-scroll pause handed to the engines.
	Settle time.Duration

	// CacheMaxAge bounds reuse of one URL's outcome within a run.
	CacheMaxAge time.Duration // default: 0 (no reuse)
}

// Tracker processes series. It holds no per-run state and is safe for
// concurrent use, though runs over the same store must not overlap.
type Tracker struct {
	fetcher  Fetcher
	registry *extract.Registry
	metrics  *metrics.Metrics
	opts     Options

	// flight collapses concurrent fetches of one URL within a run.
	flight singleflight.Group

	sleep func(context.Context, time.Duration) error
}

// New creates a Tracker. m may be nil.
func New(f Fetcher, registry *extract.Registry, opts Options, m *metrics.Metrics) *Tracker {
	if registry == nil {
		registry = extract.NewRegistry()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Tracker{
		fetcher:  f,
		registry: registry,
		metrics:  m,
		opts:     opts,
		sleep:    sleepCtx,
	}
}

// ProcessSeries checks one series without touching rec. An error means
// the series produced no result at all: the fetcher had no usable engine
// or ctx ended.
func (t *Tracker) ProcessSeries(ctx context.Context, rec models.SeriesRecord) (models.SeriesResult, error) {
	return t.process(ctx, rec, nil)
}

func (t *Tracker) process(ctx context.Context, rec models.SeriesRecord, c *cache.Cache) (models.SeriesResult, error) {
	name := strings.TrimSpace(rec.Name)
	src := strings.TrimSpace(rec.URL)
	prev := strings.TrimSpace(rec.Chapter)

	res := models.SeriesResult{Name: name, URL: src, Previous: prev}

	if err := ValidateURL(src); err != nil {
		res.Chapter, res.Status = prev, models.StatusInfo
		res.FailureReason = err.Error()
		slog.Warn("series skipped: invalid url", "series", name, "url", src, "error", err)
		return res, nil
	}

	strategy := t.registry.Resolve(src)
	res.Strategy = strategy.Name()

	out, err := t.fetch(ctx, name, src, strategy, c)
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", src, err)
	}
	res.Engine = out.Engine
	res.FailureReason = out.FailureReason

	candidate, _ := extract.Extract(out.Markup, strategy)
	res.Candidate = candidate
	res.Chapter, res.Status = decision.Decide(prev, candidate)

	attrs := []any{
		"series", name,
		"status", res.Status,
		"previous", prev,
		"candidate", candidate,
		"chapter", res.Chapter,
		"strategy", res.Strategy,
		"engine", res.Engine,
	}
	if res.FailureReason != "" {
		attrs = append(attrs, "reason", res.FailureReason)
	}
	slog.Info("series processed", attrs...)
	return res, nil
}

func (t *Tracker) fetch(ctx context.Context, name, src string, s extract.Strategy, c *cache.Cache) (*engine.FetchOutcome, error) {
	req := &engine.FetchRequest{
		URL:     src,
		Wait:    engine.WaitDOMContentLoaded,
		Timeout: t.opts.Timeout,
		Settle:  t.opts.Settle,
		Label:   name,
	}
	if h, ok := s.(interface{ WaitSelector() string }); ok {
		req.WaitSelector = h.WaitSelector()
	}

	if c == nil {
		return t.fetcher.Fetch(ctx, req)
	}

	key := cache.Key(store.NormalizeURL(src))
	v, err, shared := t.flight.Do(key, func() (any, error) {
		if out, ok := c.Get(key); ok {
			slog.Debug("fetch served from run cache", "series", name, "url", src)
			return out, nil
		}
		out, err := t.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		c.Set(key, out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("fetch shared with a concurrent series", "series", name, "url", src)
	}
	return v.(*engine.FetchOutcome), nil
}

// Run processes records in order and writes the decided chapter back into
// records for init and update results only. A series whose processing
// fails or panics is logged, left untouched, and listed in Report.Skipped.
// The returned error is non-nil only when ctx ended before every series
// was processed; the report then covers the completed ones.
func (t *Tracker) Run(ctx context.Context, records []models.SeriesRecord) (*Report, error) {
	return t.RunWithID(ctx, uuid.NewString(), records)
}

// RunWithID is Run with a caller-chosen report ID.
func (t *Tracker) RunWithID(ctx context.Context, id string, records []models.SeriesRecord) (*Report, error) {
	done := t.metrics.RunStarted()
	defer done()

	report := &Report{
		ID:        id,
		StartedAt: time.Now(),
		Counts:    make(map[models.Status]int, len(models.Statuses)),
	}
	slog.Info("run started", "run", report.ID, "series", len(records), "workers", t.opts.Workers)

	c := cache.New(len(records), t.opts.CacheMaxAge)
	runs := make([]seriesRun, len(records))

	var err error
	if t.opts.Workers > 1 {
		err = t.runParallel(ctx, records, runs, c)
	} else {
		err = t.runSequential(ctx, records, runs, c)
	}

	for i, run := range runs {
		res := run.result
		if res == nil {
			if run.attempted {
				report.Skipped = append(report.Skipped, records[i].Name)
			}
			continue
		}
		if res.Status.Persists() {
			records[i].Chapter = res.Chapter
		}
		t.metrics.ObserveSeries(res.Status)
		report.add(*res)
	}
	report.FinishedAt = time.Now()

	slog.Info("run finished",
		"run", report.ID,
		"changed", report.Changed,
		"update", report.Counts[models.StatusUpdate],
		"init", report.Counts[models.StatusInit],
		"ok", report.Counts[models.StatusOK],
		"keep", report.Counts[models.StatusKeep],
		"info", report.Counts[models.StatusInfo],
		"skipped", len(report.Skipped),
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	return report, err
}

// seriesRun is the outcome slot of one record. A nil result with attempted
// set means the series failed; unattempted slots were cut off by ctx.
type seriesRun struct {
	attempted bool
	result    *models.SeriesResult
}

func (t *Tracker) runSequential(ctx context.Context, records []models.SeriesRecord, runs []seriesRun, c *cache.Cache) error {
	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && t.opts.Pause > 0 {
			if err := t.sleep(ctx, t.opts.Pause); err != nil {
				return err
			}
		}
		runs[i].attempted = true
		runs[i].result = t.safeProcess(ctx, records[i], c)
	}
	return nil
}

func (t *Tracker) runParallel(ctx context.Context, records []models.SeriesRecord, runs []seriesRun, c *cache.Cache) error {
	hosts := newHostPacer(t.opts.Pause)

	var g errgroup.Group
	g.SetLimit(t.opts.Workers)
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := hosts.wait(ctx, records[i].URL); err != nil {
				return nil
			}
			runs[i].attempted = true
			runs[i].result = t.safeProcess(ctx, records[i], c)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// safeProcess converts errors and panics into a nil result.
func (t *Tracker) safeProcess(ctx context.Context, rec models.SeriesRecord, c *cache.Cache) (out *models.SeriesResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("series panicked, skipping", "series", rec.Name, "url", rec.URL, "panic", r)
			out = nil
		}
	}()

	res, err := t.process(ctx, rec, c)
	if err != nil {
		slog.Error("series failed, skipping", "series", rec.Name, "url", rec.URL, "error", err)
		return nil
	}
	return &res
}

// hostPacer spaces requests to the same host by at least interval.
type hostPacer struct {
	interval time.Duration
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newHostPacer(interval time.Duration) *hostPacer {
	return &hostPacer{interval: interval, limiters: make(map[string]*rate.Limiter)}
}

func (p *hostPacer) wait(ctx context.Context, rawURL string) error {
	if p.interval <= 0 {
		return ctx.Err()
	}
	host := rawURL
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}

	p.mu.Lock()
	lim, ok := p.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[host] = lim
	}
	p.mu.Unlock()

	return lim.Wait(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
