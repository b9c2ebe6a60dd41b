package models

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string   `json:"status"` // "healthy" or "degraded"
	Uptime        string   `json:"uptime"`
	Engines       []string `json:"engines"`
	ActiveRenders int      `json:"active_renders"`
	RunActive     bool     `json:"run_active"`
	Version       string   `json:"version"`
}

// CheckRequest is the body of POST /api/v1/check.
type CheckRequest struct {
	// URL is the series page to check.
	URL string `json:"url" binding:"required"`

	// Name labels logs and diagnostics; defaults to the URL.
	Name string `json:"name,omitempty"`

	// Chapter is the previously known chapter, if any.
	Chapter string `json:"chapter,omitempty"`
}

// CheckResponse is the response for POST /api/v1/check.
type CheckResponse struct {
	Success bool          `json:"success"`
	Result  *SeriesResult `json:"result,omitempty"`
	Error   *ErrorDetail  `json:"error,omitempty"`
}

// SeriesListResponse is the response for GET /api/v1/series.
type SeriesListResponse struct {
	Count  int            `json:"count"`
	Series []SeriesRecord `json:"series"`
}

// ErrorResponse wraps an error for endpoints without a richer body.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
