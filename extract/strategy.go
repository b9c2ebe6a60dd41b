package extract

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/chapterwatch/chapter"
)

// Strategy parses raw chapter candidates out of one site's markup.
type Strategy interface {
	Name() string
	// Matches reports whether the strategy is meant for url.
	Matches(url string) bool
	// ParseCandidates returns raw, unsanitized matches.
	ParseCandidates(markup string) []string
}

// HrefMode controls whether anchor hrefs are searched when the anchor text
// carries no chapter label.
type HrefMode int

const (
	HrefNone   HrefMode = iota // text only
	HrefAll                    // every anchor's href
	HrefHinted                 // only hrefs containing one of PathHints
)

// DefaultPathHints are the path fragments that mark a chapter link.
var DefaultPathHints = []string{"/chapter", "/cap", "/ep", "/episodio"}

// SiteStrategy is a data-driven Strategy. Tactics run in order and each
// later tactic runs only when the earlier ones found no usable candidate,
// i.e. nothing that sanitizes to a plausible chapter:
//
//  1. labeled patterns and "#N" on anchor text, then on hrefs per Href
//  2. labeled patterns across the text of the Containers, first selector
//     that yields wins
//  3. when KeywordFallback is set, any bare number in anchors whose text or
//     href mentions a chapter keyword
type SiteStrategy struct {
	ID              string
	Hosts           []string
	Href            HrefMode
	PathHints       []string
	Containers      []string
	KeywordFallback bool

	// WaitFor is an optional selector the fetcher waits for before capture.
	WaitFor string

	containers []cascadia.Selector
}

// Compile parses the container selectors. Invalid selectors are logged and
// skipped.
func (s *SiteStrategy) Compile() *SiteStrategy {
	s.containers = s.containers[:0]
	for _, raw := range s.Containers {
		sel, err := cascadia.Compile(raw)
		if err != nil {
			slog.Warn("extract: invalid container selector", "strategy", s.ID, "selector", raw, "error", err)
			continue
		}
		s.containers = append(s.containers, sel)
	}
	if s.Href == HrefHinted && len(s.PathHints) == 0 {
		s.PathHints = DefaultPathHints
	}
	return s
}

func (s *SiteStrategy) Name() string { return s.ID }

// WaitSelector returns the render hint for the fetcher, possibly empty.
func (s *SiteStrategy) WaitSelector() string { return s.WaitFor }

func (s *SiteStrategy) Matches(url string) bool {
	u := strings.ToLower(url)
	for _, h := range s.Hosts {
		if strings.Contains(u, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

func (s *SiteStrategy) ParseCandidates(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		slog.Debug("extract: parse markup failed", "strategy", s.ID, "error", err)
		return nil
	}

	if out := s.fromAnchors(doc); anyUsable(out) {
		return out
	}
	if out := s.fromContainers(doc); anyUsable(out) {
		return out
	}
	if s.KeywordFallback {
		return s.fromKeywords(doc)
	}
	return nil
}

func (s *SiteStrategy) fromAnchors(doc *goquery.Document) []string {
	var out []string
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		if m, ok := firstMatch(spacedText(a), labeledText, hashNumber); ok {
			out = append(out, m)
			return
		}
		href, _ := a.Attr("href")
		if !s.searchHref(href) {
			return
		}
		if m, ok := firstMatch(href, labeledPath, hashNumber); ok {
			out = append(out, m)
		}
	})
	return out
}

func (s *SiteStrategy) searchHref(href string) bool {
	if href == "" {
		return false
	}
	switch s.Href {
	case HrefAll:
		return true
	case HrefHinted:
		h := strings.ToLower(href)
		for _, hint := range s.PathHints {
			if strings.Contains(h, hint) {
				return true
			}
		}
	}
	return false
}

func (s *SiteStrategy) fromContainers(doc *goquery.Document) []string {
	for _, sel := range s.containers {
		var out []string
		doc.FindMatcher(sel).Each(func(_ int, c *goquery.Selection) {
			out = append(out, allMatches(spacedText(c), labeledText)...)
		})
		if anyUsable(out) {
			return out
		}
	}
	return nil
}

// anyUsable reports whether one raw match sanitizes to a plausible chapter.
func anyUsable(raw []string) bool {
	for _, r := range raw {
		if clean, err := chapter.Sanitize(r); err == nil && chapter.IsPlausible(clean) {
			return true
		}
	}
	return false
}

func (s *SiteStrategy) fromKeywords(doc *goquery.Document) []string {
	var out []string
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		text := spacedText(a)
		if chapterKeyword.MatchString(text) {
			out = append(out, allMatches(text, bareNumber)...)
			return
		}
		if href, _ := a.Attr("href"); chapterKeyword.MatchString(href) {
			out = append(out, allMatches(href, bareNumber)...)
		}
	})
	return out
}
