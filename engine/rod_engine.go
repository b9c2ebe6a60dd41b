package engine

import (
	"context"
	"fmt"
)

// RenderFunc is the callback type that wraps scraper.Scraper.Render.
// It is injected from main.go to avoid a circular import (engine/ -> scraper/).
type RenderFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is the Chromium engine. It delegates to the rod scraper, which
// owns the browser process, through a callback.
type RodEngine struct {
	render RenderFunc
	name   string
}

// NewRodEngine creates a RodEngine named "chromium". A nil render reports
// the engine as unavailable on every fetch.
func NewRodEngine(render RenderFunc) *RodEngine {
	return &RodEngine{render: render, name: "chromium"}
}

func (e *RodEngine) Name() string { return e.name }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.render == nil {
		return nil, unavailable(e.name+": browser not launched", nil)
	}

	result, err := e.render(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	result.EngineName = e.name
	return result, nil
}
