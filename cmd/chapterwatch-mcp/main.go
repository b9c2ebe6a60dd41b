package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// apiError mirrors the chapterwatch API error detail.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// seriesResult mirrors models.SeriesResult.
type seriesResult struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Previous      string `json:"previous"`
	Candidate     string `json:"candidate"`
	Chapter       string `json:"chapter"`
	Status        string `json:"status"`
	Strategy      string `json:"strategy"`
	Engine        string `json:"engine"`
	FailureReason string `json:"failure_reason"`
}

type checkResponse struct {
	Success bool          `json:"success"`
	Result  *seriesResult `json:"result"`
	Error   *apiError     `json:"error"`
}

type seriesListResponse struct {
	Count  int `json:"count"`
	Series []struct {
		Name    string `json:"name"`
		URL     string `json:"url"`
		Chapter string `json:"chapter"`
	} `json:"series"`
	Error *apiError `json:"error"`
}

type runJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
	Report *struct {
		Results []seriesResult `json:"results"`
		Skipped []string       `json:"skipped"`
		Changed bool           `json:"changed"`
	} `json:"report"`
}

// client talks to a running `chapterwatch serve`.
type client struct {
	http   *http.Client
	apiURL string
	apiKey string
	poll   time.Duration
}

func main() {
	apiURL := os.Getenv("CHAPTERWATCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := &client{
		http:   &http.Client{Timeout: 120 * time.Second},
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: os.Getenv("CHAPTERWATCH_API_KEY"),
		poll:   2 * time.Second,
	}

	s := server.NewMCPServer(
		"chapterwatch",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	checkTool := mcp.NewTool("check_series",
		mcp.WithDescription("Fetch a serialized-content page and report its latest chapter and what a tracking run would decide. Nothing is saved."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The series page URL"),
		),
		mcp.WithString("chapter",
			mcp.Description("The previously known chapter, e.g. '10' or '10.5'"),
		),
		mcp.WithString("name",
			mcp.Description("A label for the series (defaults to the URL)"),
		),
	)
	s.AddTool(checkTool, c.handleCheckSeries)

	listTool := mcp.NewTool("list_series",
		mcp.WithDescription("List the tracked series with their stored chapters."),
	)
	s.AddTool(listTool, c.handleListSeries)

	runTool := mcp.NewTool("run_tracker",
		mcp.WithDescription("Run the tracker over every stored series, wait for it to finish and return the report. Joins the run in progress if there is one."),
	)
	s.AddTool(runTool, c.handleRunTracker)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// do sends a request to the API and returns the status code and body.
func (c *client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func (c *client) handleCheckSeries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	payload := map[string]string{
		"url":     url,
		"chapter": request.GetString("chapter", ""),
		"name":    request.GetString("name", ""),
	}

	_, body, err := c.do(ctx, http.MethodPost, "/api/v1/check", payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var resp checkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}
	if !resp.Success || resp.Result == nil {
		return mcp.NewToolResultError(errorText("check failed", resp.Error)), nil
	}

	r := resp.Result
	var sb strings.Builder
	fmt.Fprintf(&sb, "Status: %s\nChapter: %s\n", r.Status, orUnknown(r.Chapter))
	fmt.Fprintf(&sb, "Previous: %s\nCandidate: %s\n", orUnknown(r.Previous), orUnknown(r.Candidate))
	fmt.Fprintf(&sb, "Strategy: %s\nEngine: %s\n", r.Strategy, orUnknown(r.Engine))
	if r.FailureReason != "" {
		fmt.Fprintf(&sb, "Failure: %s\n", r.FailureReason)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleListSeries(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/v1/series", nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var resp seriesListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}
	if status != http.StatusOK {
		return mcp.NewToolResultError(errorText("list failed", resp.Error)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d series\n\n", resp.Count)
	for _, s := range resp.Series {
		fmt.Fprintf(&sb, "- %s: chapter %s (%s)\n", s.Name, orUnknown(s.Chapter), s.URL)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleRunTracker(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/runs", nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var id string
	switch status {
	case http.StatusAccepted:
		var job runJob
		if err := json.Unmarshal(body, &job); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse run: %v", err)), nil
		}
		id = job.ID
	case http.StatusConflict:
		var conflict struct {
			Run runJob `json:"run"`
		}
		if err := json.Unmarshal(body, &conflict); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse conflict: %v", err)), nil
		}
		id = conflict.Run.ID
	default:
		var resp struct {
			Error *apiError `json:"error"`
		}
		_ = json.Unmarshal(body, &resp)
		return mcp.NewToolResultError(errorText(fmt.Sprintf("run request failed (HTTP %d)", status), resp.Error)), nil
	}
	if id == "" {
		return mcp.NewToolResultError("run creation failed"), nil
	}

	job, err := c.pollRun(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("polling run failed: %v", err)), nil
	}
	if job.Status == "failed" {
		return mcp.NewToolResultError(fmt.Sprintf("run %s failed: %s", job.ID, job.Error)), nil
	}
	return mcp.NewToolResultText(formatRun(job)), nil
}

// pollRun polls a run until it leaves the running state or ctx ends.
func (c *client) pollRun(ctx context.Context, id string) (*runJob, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, body, err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+id, nil)
			if err != nil {
				return nil, err
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("poll returned HTTP %d", status)
			}
			var job runJob
			if err := json.Unmarshal(body, &job); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if job.Status != "running" {
				return &job, nil
			}
		}
	}
}

func formatRun(job *runJob) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s: %s\n\n", job.ID, job.Status)
	if job.Report == nil {
		return sb.String()
	}
	for _, r := range job.Report.Results {
		fmt.Fprintf(&sb, "- %s: chapter %s (%s)\n", r.Name, orUnknown(r.Chapter), r.Status)
	}
	if len(job.Report.Skipped) > 0 {
		fmt.Fprintf(&sb, "\nSkipped: %s\n", strings.Join(job.Report.Skipped, ", "))
	}
	if !job.Report.Changed {
		sb.WriteString("\nNo chapters changed.\n")
	}
	return sb.String()
}

func errorText(fallback string, e *apiError) string {
	if e == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
