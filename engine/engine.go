package engine

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single navigation attempt.
const DefaultTimeout = 30 * time.Second

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "chromium", "firefox", "http").
	Name() string

	// Fetch renders the page for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// WaitMode selects the page lifecycle milestone a navigation waits for.
type WaitMode int

const (
	WaitDOMContentLoaded WaitMode = iota
	WaitNetworkIdle
)

func (w WaitMode) String() string {
	if w == WaitNetworkIdle {
		return "networkidle"
	}
	return "domcontentloaded"
}

// FetchRequest contains everything an engine needs to render a page.
type FetchRequest struct {
	URL string

	// WaitSelector is waited for softly; a timeout is not an error.
	WaitSelector string

	Wait    WaitMode
	Timeout time.Duration

	// Settle is an extra pause after load and scroll for late DOM updates.
	Settle time.Duration

	// Label names the series for logs and diagnostics.
	Label string
}

// timeout returns the request timeout or DefaultTimeout.
func (r *FetchRequest) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

// FetchResult is the output of a completed engine navigation. It says
// nothing about whether the markup is a challenge page.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}
