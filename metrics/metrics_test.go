package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/chapterwatch/models"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveAttempt("chromium", "antibot", 2*time.Second)
	m.ObserveAttempt("chromium", "antibot", time.Second)
	m.ObserveAttempt("firefox", "ok", time.Second)
	m.ObserveSeries(models.StatusUpdate)
	m.ObserveSeries(models.StatusKeep)
	m.ObserveSeries(models.StatusKeep)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchAttemptsTotal.WithLabelValues("chromium", "antibot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttemptsTotal.WithLabelValues("firefox", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SeriesTotal.WithLabelValues("keep")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.FetchDuration))
}

func TestMetrics_RunStarted(t *testing.T) {
	m := New()
	done := m.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsCurrentlyActive))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsCurrentlyActive))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDurationSeconds))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt("chromium", "ok", time.Second)
		m.ObserveSeries(models.StatusOK)
		m.RunStarted()()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveSeries(models.StatusInit)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `chapterwatch_series_total{status="init"} 1`)
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
