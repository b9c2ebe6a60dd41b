// Package extract finds the latest chapter identifier in a rendered page.
//
// Site layouts differ and change without notice, so a Strategy is resolved
// per URL and every raw match is sanitized and checked for plausibility
// before the maximum is taken. Malformed and implausible matches are
// dropped silently.
package extract

import (
	"github.com/use-agent/chapterwatch/chapter"
)

// Candidates returns the sanitized, plausible candidates s finds in markup,
// de-duplicated in first-seen order.
func Candidates(markup string, s Strategy) []string {
	if s == nil || markup == "" {
		return nil
	}
	raw := s.ParseCandidates(markup)
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		clean, err := chapter.Sanitize(r)
		if err != nil || !chapter.IsPlausible(clean) {
			continue
		}
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

// Extract returns the greatest candidate. ok is false when nothing survived.
func Extract(markup string, s Strategy) (string, bool) {
	return chapter.Max(Candidates(markup, s))
}
