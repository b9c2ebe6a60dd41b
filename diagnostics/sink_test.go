package diagnostics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const challenge = `<html><head><title>Just a moment...</title></head>
<body><div id="cf-wrapper"><div class="cf-browser-verification"><noscript>Enable JavaScript and cookies to continue</noscript>
<script src="/cdn-cgi/challenge-platform/h/b/orchestrate/jsch/v1?ray=%s"></script></div></div></body></html>`

const listing = `<html><head><title>Solo Leveling</title></head><body>
<header><nav><ul><li><a href="/">Inicio</a></li><li><a href="/lista">Lista</a></li></ul></nav></header>
<main><article><h1>Solo Leveling</h1><p>Sinopsis larga de la serie.</p>
<table><tr><td><a href="/c/11">Capítulo 11</a></td><td>12/03</td></tr>
<tr><td><a href="/c/10">Capítulo 10</a></td><td>05/03</td></tr></table>
<section><h2>Comentarios</h2><form><input name="q"><button>Enviar</button></form></section>
</article></main><footer><p>pie</p></footer></body></html>`

func TestSlug(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Solo Leveling", "solo-leveling"},
		{"  Re:Zero -- Kara!! ", "re-zero-kara"},
		{"Capítulo", "cap-tulo"},
		{"", "series"},
		{"!!!", "series"},
		{strings.Repeat("a", 80), strings.Repeat("a", 60)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in), "Slug(%q)", tt.in)
	}
}

func TestStructureFingerprint(t *testing.T) {
	a := StructureFingerprint(strings.Replace(challenge, "%s", "8f1a", 1))
	b := StructureFingerprint(strings.Replace(challenge, "%s", "91bc77", 1))
	assert.Equal(t, a, b, "token changes do not alter structure")

	c := StructureFingerprint(listing)
	assert.Greater(t, Distance(a, c), DefaultSimilarity)

	assert.Equal(t, uint64(0), StructureFingerprint(""))
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance(0xFF, 0xFF))
	assert.Equal(t, 64, Distance(0, ^uint64(0)))
	assert.Equal(t, 2, Distance(0, 3))
}

func newTestSink(t *testing.T) *FileSink {
	t.Helper()
	s := NewFileSink(filepath.Join(t.TempDir(), "dumps"))
	tick := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func dumpFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFileSink_WritesHTMLAndDigest(t *testing.T) {
	s := newTestSink(t)
	markup := strings.Replace(challenge, "%s", "1", 1)
	s.Dump("firefox", "Solo Leveling", markup)

	files := dumpFiles(t, s.Dir)
	require.Len(t, files, 2)
	assert.Equal(t, "solo-leveling-firefox-20260301T100001.000.html", files[0])
	assert.Equal(t, "solo-leveling-firefox-20260301T100001.000.md", files[1])

	raw, err := os.ReadFile(filepath.Join(s.Dir, files[0]))
	require.NoError(t, err)
	assert.Equal(t, markup, string(raw))

	md, err := os.ReadFile(filepath.Join(s.Dir, files[1]))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Solo Leveling (firefox)")
	assert.Contains(t, string(md), `- marker: "just a moment"`)
}

func TestFileSink_SkipsNearDuplicates(t *testing.T) {
	s := newTestSink(t)
	s.Dump("chromium", "Solo", strings.Replace(challenge, "%s", "1", 1))
	s.Dump("chromium", "Solo", strings.Replace(challenge, "%s", "2", 1))
	assert.Len(t, dumpFiles(t, s.Dir), 2)

	s.Dump("webkit", "Solo", strings.Replace(challenge, "%s", "3", 1))
	assert.Len(t, dumpFiles(t, s.Dir), 4, "another engine is a separate key")

	s.Dump("chromium", "Solo", listing)
	assert.Len(t, dumpFiles(t, s.Dir), 6, "a different page is written")
}

func TestFileSink_UnwritableDirIsSwallowed(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	s := NewFileSink(filepath.Join(file, "dumps"))
	assert.NotPanics(t, func() { s.Dump("chromium", "Solo", listing) })
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	assert.NotPanics(t, func() { s.Dump("chromium", "x", "y") })
}
