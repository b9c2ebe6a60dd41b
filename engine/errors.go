package engine

import (
	"context"
	"errors"

	"github.com/use-agent/chapterwatch/models"
)

// ErrAutomationUnavailable means no engine could be initialized at all.
// It is the only error Fetcher.Fetch returns.
var ErrAutomationUnavailable = errors.New("engine: browser automation unavailable")

// Failure kinds used in failure reason tokens.
const (
	KindTimeout     = "timeout"
	KindCanceled    = "canceled"
	KindNavigation  = "navigation"
	KindCrash       = "crash"
	KindUnavailable = "unavailable"
	KindError       = "error"
)

// unavailable wraps an engine initialization failure.
func unavailable(msg string, err error) *models.ScrapeError {
	return models.NewScrapeError(models.ErrCodeEngineUnavailable, msg, err)
}

// categorizeError wraps raw errors into typed ScrapeErrors so callers can
// tell timeouts from navigation failures.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeCanceled, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// Kind classifies an engine error into a failure reason kind.
func Kind(err error) string {
	switch models.CodeOf(err) {
	case models.ErrCodeTimeout:
		return KindTimeout
	case models.ErrCodeCanceled:
		return KindCanceled
	case models.ErrCodeNavigation:
		return KindNavigation
	case models.ErrCodeBrowserCrash:
		return KindCrash
	case models.ErrCodeEngineUnavailable:
		return KindUnavailable
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindError
}
