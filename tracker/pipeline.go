package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/chapterwatch/engine"
	"github.com/use-agent/chapterwatch/models"
	"github.com/use-agent/chapterwatch/notify"
)

// Store loads and saves the tracked series.
type Store interface {
	Load() ([]models.SeriesRecord, error)
	Save(records []models.SeriesRecord) error
}

// notifyTimeout bounds report delivery, which outlives a canceled run.
const notifyTimeout = 30 * time.Second

// Pipeline is one complete run: load the store, process every series, save
// when something changed, and deliver the report.
type Pipeline struct {
	Tracker  *Tracker
	Store    Store
	Notifier notify.Notifier // nil disables delivery
	Target   string
}

// Execute runs the pipeline under report ID id. A load failure returns no
// report. Once a run finished, the report is always delivered; save
// failures are returned with it and delivery failures are only logged.
// When every series failed the error wraps engine.ErrAutomationUnavailable.
func (p *Pipeline) Execute(ctx context.Context, id string) (*Report, error) {
	records, err := p.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	report, runErr := p.Tracker.RunWithID(ctx, id, records)
	defer p.deliver(ctx, report)

	if report.Changed {
		if err := p.Store.Save(records); err != nil {
			return report, fmt.Errorf("save series: %w", err)
		}
		slog.Info("series store saved", "run", report.ID)
	} else {
		slog.Info("no changes, series store left untouched", "run", report.ID)
	}

	if runErr == nil && len(records) > 0 && len(report.Skipped) == len(records) {
		return report, fmt.Errorf("%w: all %d series failed", engine.ErrAutomationUnavailable, len(records))
	}
	return report, runErr
}

func (p *Pipeline) deliver(ctx context.Context, report *Report) {
	if p.Notifier == nil || p.Target == "" {
		slog.Info("notification target not configured, report not sent", "run", report.ID)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := p.Notifier.Send(ctx, p.Target, report.Text()); err != nil {
		slog.Warn("report delivery failed", "run", report.ID, "error", err)
	}
}
