// Package notify delivers run reports to chat webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultChunkSize keeps each message under Discord's 2000 character cap
// with room for formatting.
const DefaultChunkSize = 1800

// DefaultRetryDelays is the per-chunk schedule: one immediate try, then
// retries after 1s and 5s.
var DefaultRetryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second}

// Notifier sends a report to a target. Callers treat an error as a warning.
type Notifier interface {
	Send(ctx context.Context, target, content string) error
}

// Discord posts content to a Discord webhook as {"content": ...} messages.
type Discord struct {
	Client      *http.Client
	ChunkSize   int
	RetryDelays []time.Duration

	sleep func(context.Context, time.Duration) error
}

// NewDiscord returns a Discord notifier with default limits.
func NewDiscord() *Discord {
	return &Discord{
		Client:      &http.Client{Timeout: 15 * time.Second},
		ChunkSize:   DefaultChunkSize,
		RetryDelays: DefaultRetryDelays,
		sleep:       sleepCtx,
	}
}

type message struct {
	Content string `json:"content"`
}

// Send splits content into ordered chunks and delivers each with retries.
// It stops at the first chunk that exhausts its retries.
func (d *Discord) Send(ctx context.Context, webhookURL, content string) error {
	if strings.TrimSpace(webhookURL) == "" {
		return fmt.Errorf("notify: empty webhook url")
	}
	chunks := Chunk(content, d.chunkSize())
	for i, chunk := range chunks {
		if err := d.deliverWithRetry(ctx, webhookURL, chunk); err != nil {
			return fmt.Errorf("notify: chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	slog.Info("report delivered", "target", "discord", "chunks", len(chunks))
	return nil
}

func (d *Discord) deliverWithRetry(ctx context.Context, webhookURL, chunk string) error {
	delays := d.RetryDelays
	if len(delays) == 0 {
		delays = []time.Duration{0}
	}
	sleep := d.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt, delay := range delays {
		if delay > 0 {
			if serr := sleep(ctx, delay); serr != nil {
				return serr
			}
		}
		if err = d.deliver(ctx, webhookURL, chunk); err == nil {
			return nil
		}
		slog.Warn("webhook delivery failed", "target", "discord", "attempt", attempt+1, "error", err)
	}
	return err
}

// deliver sends one message synchronously.
func (d *Discord) deliver(ctx context.Context, webhookURL, chunk string) error {
	body, err := json.Marshal(message{Content: chunk})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Chapterwatch-Webhook/1.0")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Discord) chunkSize() int {
	if d.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return d.ChunkSize
}

// Chunk splits content on line boundaries into pieces of at most size
// runes. A line longer than size is split on rune boundaries. Empty
// content yields no chunks.
func Chunk(content string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.Split(content, "\n") {
		n := utf8.RuneCountInString(line)
		for n > size {
			flush()
			head, tail := splitRunes(line, size)
			chunks = append(chunks, head)
			line, n = tail, n-size
		}

		need := n
		if curLen > 0 {
			need++ // newline
		}
		if curLen+need > size {
			flush()
			need = n
		}
		if curLen > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
		curLen += need
	}
	flush()
	return chunks
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for idx := range s {
		if i == n {
			return s[:idx], s[idx:]
		}
		i++
	}
	return s, ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
