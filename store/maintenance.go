package store

import (
	"net/url"
	"strings"

	"github.com/use-agent/chapterwatch/chapter"
	"github.com/use-agent/chapterwatch/models"
)

// NormalizeURL reduces a series URL to the form used for duplicate
// detection: lower-case scheme and host, no "www.", no query or fragment,
// no trailing slash. Unparsable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	u.RawPath = ""
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// IsTruncated reports URLs that cannot be fetched as stored: a literal
// "..." left by copy-paste, or a scheme other than http(s).
func IsTruncated(raw string) bool {
	raw = strings.TrimSpace(raw)
	return strings.Contains(raw, "...") ||
		!(strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://"))
}

// InvalidRecords lists the records whose URL needs manual correction.
func InvalidRecords(records []models.SeriesRecord) []models.SeriesRecord {
	var bad []models.SeriesRecord
	for _, r := range records {
		if IsTruncated(r.URL) {
			bad = append(bad, r)
		}
	}
	return bad
}

// Dedupe collapses records sharing a normalized URL into the one with the
// highest chapter. The survivor takes the position of the first occurrence;
// ties keep the earlier record. Invalid records pass through untouched.
// It returns the kept records and how many were dropped.
func Dedupe(records []models.SeriesRecord) ([]models.SeriesRecord, int) {
	out := make([]models.SeriesRecord, 0, len(records))
	index := make(map[string]int, len(records))

	for _, r := range records {
		if IsTruncated(r.URL) {
			out = append(out, r)
			continue
		}
		key := NormalizeURL(r.URL)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, r)
			continue
		}
		if chapter.Compare(r.Chapter, out[i].Chapter) > 0 {
			out[i] = r
		}
	}
	return out, len(records) - len(out)
}
