// Package diagnostics captures the markup of blocked fetches so anti-bot
// markers and site templates can be inspected after a run.
package diagnostics

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// Sink receives the markup of an engine whose attempts all looked blocked.
// Implementations must not fail the caller.
type Sink interface {
	Dump(engine, series, markup string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Dump(string, string, string) {}

// DefaultSimilarity is the fingerprint distance at or below which two dumps
// for the same series and engine count as the same page.
const DefaultSimilarity = 3

// FileSink writes "<slug>-<engine>-<timestamp>.html" and a Markdown digest
// next to it.
type FileSink struct {
	Dir        string
	Similarity int

	mu   sync.Mutex
	last map[string]uint64
	conv *converter.Converter
	now  func() time.Time
}

// NewFileSink creates a FileSink writing into dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{
		Dir:        dir,
		Similarity: DefaultSimilarity,
		last:       make(map[string]uint64),
		conv:       newDigestConverter(),
		now:        time.Now,
	}
}

func (s *FileSink) Dump(engine, series, markup string) {
	if s.seen(engine, series, markup) {
		slog.Debug("diagnostics: near-duplicate dump skipped", "engine", engine, "series", series)
		return
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		slog.Debug("diagnostics: create dir failed", "dir", s.Dir, "error", err)
		return
	}

	base := filepath.Join(s.Dir, fmt.Sprintf("%s-%s-%s", Slug(series), Slug(engine), s.now().Format("20060102T150405.000")))
	if err := os.WriteFile(base+".html", []byte(markup), 0o644); err != nil {
		slog.Debug("diagnostics: write html failed", "path", base+".html", "error", err)
		return
	}
	if err := os.WriteFile(base+".md", []byte(s.digest(engine, series, markup)), 0o644); err != nil {
		slog.Debug("diagnostics: write digest failed", "path", base+".md", "error", err)
		return
	}
	slog.Debug("diagnostics: dump written", "path", base+".html", "bytes", len(markup))
}

// seen records the fingerprint and reports whether it is within the
// similarity distance of the previous dump for the same key.
func (s *FileSink) seen(engine, series, markup string) bool {
	fp := StructureFingerprint(markup)
	key := series + "\x00" + engine

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = make(map[string]uint64)
	}
	prev, ok := s.last[key]
	s.last[key] = fp
	return ok && Distance(prev, fp) <= s.Similarity
}

// Slug turns a series or engine name into a file-name-safe token.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > 60 {
		out = strings.TrimSuffix(out[:60], "-")
	}
	if out == "" {
		return "series"
	}
	return out
}
