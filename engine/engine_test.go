package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/chapterwatch/models"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout code", models.NewScrapeError(models.ErrCodeTimeout, "x", nil), KindTimeout},
		{"canceled code", models.NewScrapeError(models.ErrCodeCanceled, "x", nil), KindCanceled},
		{"navigation code", models.NewScrapeError(models.ErrCodeNavigation, "x", nil), KindNavigation},
		{"crash code", models.NewScrapeError(models.ErrCodeBrowserCrash, "x", nil), KindCrash},
		{"unavailable code", models.NewScrapeError(models.ErrCodeEngineUnavailable, "x", nil), KindUnavailable},
		{"wrapped code", fmt.Errorf("chromium: %w", models.NewScrapeError(models.ErrCodeTimeout, "x", nil)), KindTimeout},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"canceled", fmt.Errorf("nav: %w", context.Canceled), KindCanceled},
		{"plain", errors.New("boom"), KindError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestRodEngine(t *testing.T) {
	_, err := NewRodEngine(nil).Fetch(context.Background(), request())
	assert.Equal(t, KindUnavailable, Kind(err))

	e := NewRodEngine(func(_ context.Context, req *FetchRequest) (*FetchResult, error) {
		return &FetchResult{HTML: chapterPage, FinalURL: req.URL}, nil
	})
	res, err := e.Fetch(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "chromium", res.EngineName)

	e = NewRodEngine(func(context.Context, *FetchRequest) (*FetchResult, error) {
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "slow", context.DeadlineExceeded)
	})
	_, err = e.Fetch(context.Background(), request())
	assert.Equal(t, KindTimeout, Kind(err))
}

func TestDefaultIdentity(t *testing.T) {
	assert.Contains(t, DefaultIdentity("chromium").UserAgent, "Chrome/")
	assert.Contains(t, DefaultIdentity("firefox").UserAgent, "Firefox/")
	assert.Contains(t, DefaultIdentity("webkit").UserAgent, "Safari/")
	assert.Equal(t, "es-ES", DefaultIdentity("http").Locale)

	id := DefaultIdentity("chromium").With(Identity{Locale: "en-US", ViewportWidth: 800})
	assert.Equal(t, "en-US", id.Locale)
	assert.Equal(t, 1366, id.ViewportWidth, "a partial viewport is ignored")
	assert.Equal(t, "Europe/Madrid", id.Timezone)
}

func TestHTTPEngine(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "es-ES,es;q=0.9,en;q=0.8", r.Header.Get("Accept-Language"))
		assert.Contains(t, r.Header.Get("Referer"), "google.com/search")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, chapterPage)
	})
	mux.HandleFunc("/challenge", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, blockedPage)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewHTTPEngine(DefaultIdentity("http"), "")
	ctx := context.Background()

	res, err := e.Fetch(ctx, &FetchRequest{URL: srv.URL + "/ok"})
	require.NoError(t, err)
	assert.Equal(t, chapterPage, res.HTML)
	assert.Equal(t, "Serie", res.Title)
	assert.Equal(t, "http", res.EngineName)

	res, err = e.Fetch(ctx, &FetchRequest{URL: srv.URL + "/challenge"})
	require.NoError(t, err, "challenge statuses are classified by the detector")
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	_, err = e.Fetch(ctx, &FetchRequest{URL: srv.URL + "/missing"})
	assert.Equal(t, KindNavigation, Kind(err))

	_, err = e.Fetch(ctx, &FetchRequest{URL: srv.URL + "/json"})
	assert.Equal(t, KindNavigation, Kind(err))
}

func TestHTTPEngine_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTPEngine(DefaultIdentity("http"), "").Fetch(ctx, &FetchRequest{URL: srv.URL})
	assert.Equal(t, KindTimeout, Kind(err))
}

func TestDomainMemory(t *testing.T) {
	dm := NewDomainMemory(time.Minute)
	defer dm.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dm.now = func() time.Time { return now }

	assert.Equal(t, "", dm.Get("a.example"))
	dm.Set("a.example", "firefox")
	assert.Equal(t, "firefox", dm.Get("a.example"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, "", dm.Get("a.example"), "expired entries are dropped")

	dm.Set("b.example", "webkit")
	now = now.Add(2 * time.Minute)
	dm.prune()
	_, found := dm.store.Load("b.example")
	assert.False(t, found)

	dm.Set("c.example", "chromium")
	dm.Delete("c.example")
	assert.Equal(t, "", dm.Get("c.example"))

	dm.Stop()
	assert.NotPanics(t, dm.Stop)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "m440.in", hostOf("https://M440.in/manga/x"))
	assert.Equal(t, "", hostOf("::not a url"))
}
