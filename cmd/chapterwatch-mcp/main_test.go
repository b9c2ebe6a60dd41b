package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(srv *httptest.Server) *client {
	return &client{http: srv.Client(), apiURL: srv.URL, apiKey: "k", poll: time.Millisecond}
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestCheckSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/check", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://a.example/s", body["url"])
		assert.Equal(t, "10", body["chapter"])

		_, _ = w.Write([]byte(`{"success":true,"result":{"status":"update","chapter":"11","previous":"10","candidate":"11","strategy":"generic","engine":"chromium"}}`))
	}))
	defer srv.Close()

	res, err := newClient(srv).handleCheckSeries(context.Background(),
		callTool(map[string]any{"url": "https://a.example/s", "chapter": "10"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "Status: update")
	assert.Contains(t, text, "Chapter: 11")
}

func TestCheckSeries_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"ENGINE_UNAVAILABLE","message":"no engine"}}`))
	}))
	defer srv.Close()

	res, err := newClient(srv).handleCheckSeries(context.Background(),
		callTool(map[string]any{"url": "https://a.example/s"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "ENGINE_UNAVAILABLE")
}

func TestRunTracker_JoinsActiveRun(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/runs":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"run":{"id":"r1","status":"running"}}`))
		case r.URL.Path == "/api/v1/runs/r1":
			if polls.Add(1) < 2 {
				_, _ = w.Write([]byte(`{"id":"r1","status":"running"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"r1","status":"completed","report":{"changed":true,"results":[{"name":"Solo","chapter":"11","status":"update"}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, err := newClient(srv).handleRunTracker(context.Background(), callTool(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "- Solo: chapter 11 (update)")
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}
