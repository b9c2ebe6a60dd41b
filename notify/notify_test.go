package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name    string
		content string
		size    int
		want    []string
	}{
		{"empty", "", 10, nil},
		{"fits", "a\nb", 10, []string{"a\nb"}},
		{"splits on lines", "aaaa\nbbbb\ncc", 9, []string{"aaaa\nbbbb", "cc"}},
		{"exact boundary", "aaaa\nbbbb", 9, []string{"aaaa\nbbbb"}},
		{"overlong line", "abcdefghij\nxy", 4, []string{"abcd", "efgh", "ij", "xy"}},
		{"overlong tail joins next line", "abcdef\nx", 4, []string{"abcd", "ef\nx"}},
		{"runes not bytes", "ñññññ", 2, []string{"ññ", "ññ", "ñ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.content, tt.size))
		})
	}
}

func TestChunk_PreservesOrderAndSize(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, "✅ **Serie con nombre largo** — cap **123** (ok)")
	}
	content := strings.Join(lines, "\n")

	chunks := Chunk(content, DefaultChunkSize)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), DefaultChunkSize)
	}
	assert.Equal(t, content, strings.Join(chunks, "\n"))
}

type webhookServer struct {
	mu       sync.Mutex
	received []string
	failures int
}

func (w *webhookServer) handler(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		rw.WriteHeader(http.StatusTooManyRequests)
		return
	}
	var m message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	w.received = append(w.received, m.Content)
	rw.WriteHeader(http.StatusNoContent)
}

func newTestDiscord(chunk int) (*Discord, *[]time.Duration) {
	var slept []time.Duration
	d := NewDiscord()
	d.ChunkSize = chunk
	d.sleep = func(_ context.Context, dur time.Duration) error {
		slept = append(slept, dur)
		return nil
	}
	return d, &slept
}

func TestDiscord_SendChunks(t *testing.T) {
	ws := &webhookServer{}
	srv := httptest.NewServer(http.HandlerFunc(ws.handler))
	defer srv.Close()

	d, slept := newTestDiscord(12)
	require.NoError(t, d.Send(context.Background(), srv.URL, "line one\nline two\nline three"))

	assert.Equal(t, []string{"line one", "line two", "line three"}, ws.received)
	assert.Empty(t, *slept)
}

func TestDiscord_RetriesThenSucceeds(t *testing.T) {
	ws := &webhookServer{failures: 2}
	srv := httptest.NewServer(http.HandlerFunc(ws.handler))
	defer srv.Close()

	d, slept := newTestDiscord(DefaultChunkSize)
	require.NoError(t, d.Send(context.Background(), srv.URL, "**Estado de tus series**"))

	assert.Equal(t, []string{"**Estado de tus series**"}, ws.received)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second}, *slept)
}

func TestDiscord_FailsAfterRetries(t *testing.T) {
	ws := &webhookServer{failures: 10}
	srv := httptest.NewServer(http.HandlerFunc(ws.handler))
	defer srv.Close()

	d, _ := newTestDiscord(DefaultChunkSize)
	err := d.Send(context.Background(), srv.URL, "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 1/1")
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, 7, ws.failures, "three attempts were made")
}

func TestDiscord_EmptyTarget(t *testing.T) {
	err := NewDiscord().Send(context.Background(), " ", "report")
	assert.Error(t, err)
}

func TestDiscord_CanceledDuringBackoff(t *testing.T) {
	ws := &webhookServer{failures: 10}
	srv := httptest.NewServer(http.HandlerFunc(ws.handler))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDiscord()
	d.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	err := d.Send(ctx, srv.URL, "report")
	assert.ErrorIs(t, err, context.Canceled)
}
