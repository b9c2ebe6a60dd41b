package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/chapterwatch/api/handler"
	"github.com/use-agent/chapterwatch/config"
	"github.com/use-agent/chapterwatch/metrics"
	"github.com/use-agent/chapterwatch/models"
	"github.com/use-agent/chapterwatch/tracker"
)

type memStore struct{}

func (memStore) Load() ([]models.SeriesRecord, error) {
	return []models.SeriesRecord{{Name: "Solo", URL: "https://a.example/s", Chapter: "1"}}, nil
}
func (memStore) Save([]models.SeriesRecord) error { return nil }

type noopExecutor struct{}

func (noopExecutor) Execute(_ context.Context, id string) (*tracker.Report, error) {
	return &tracker.Report{ID: id}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{"k"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
	m := metrics.New()
	m.ObserveSeries(models.StatusOK)

	return NewRouter(ctx, cfg, Deps{
		Engines:   []string{"http"},
		Store:     memStore{},
		Runs:      handler.NewRuns(ctx, noopExecutor{}),
		Metrics:   m,
		StartTime: time.Now(),
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `chapterwatch_series_total{status="ok"} 1`)
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/series", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/series", nil)
	req.Header.Set("X-API-Key", "k")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}
