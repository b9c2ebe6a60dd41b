// Package antibot classifies rendered markup as an anti-bot challenge page
// or real content. It is a heuristic safety net, not a security boundary.
package antibot

import (
	"strings"
)

// ScanLimit is the number of leading bytes inspected per document.
// Challenge interstitials are small; real pages put their markers, if any,
// in the head.
const ScanLimit = 120 * 1024

// defaultMarkers is the seed list of lower-case challenge markers.
var defaultMarkers = []string{
	// Interstitial titles and copy.
	"just a moment",
	"attention required",
	"checking your browser",
	"checking if the site connection is secure",
	"please wait...",
	"ddos protection by",
	"verify you are human",
	"verifying you are human",

	// CDN and WAF challenge scripts.
	"cf-browser-verification",
	"cf-chl-",
	"/cdn-cgi/challenge-platform",
	"challenges.cloudflare.com",
	"ddos-guard",
	"sucuri website firewall",
	"_incapsula_resource",

	// CAPTCHA widgets.
	"g-recaptcha",
	"h-captcha",
	"hcaptcha.com",
	"cf-turnstile",
	"captcha-delivery.com",

	// Localized "enable JavaScript / cookies" prompts.
	"please enable javascript",
	"please enable cookies",
	"enable javascript and cookies to continue",
	"habilite javascript",
	"habilita javascript",
	"activa javascript",
	"habilita las cookies",
	"habilite las cookies",
	"verificando que eres humano",
}

// Detector matches markup against a list of challenge markers.
// The zero value is not usable; use New or Default.
type Detector struct {
	markers []string
}

// New creates a Detector with the seed markers.
func New() *Detector {
	m := make([]string, len(defaultMarkers))
	copy(m, defaultMarkers)
	return &Detector{markers: m}
}

// WithMarkers returns a copy of d extended with extra markers. Matching is
// case-insensitive.
func (d *Detector) WithMarkers(extra ...string) *Detector {
	m := make([]string, 0, len(d.markers)+len(extra))
	m = append(m, d.markers...)
	for _, e := range extra {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			m = append(m, e)
		}
	}
	return &Detector{markers: m}
}

// Match returns the first marker found in markup. Empty markup reports the
// pseudo-marker "empty".
func (d *Detector) Match(markup string) (string, bool) {
	if strings.TrimSpace(markup) == "" {
		return "empty", true
	}
	if len(markup) > ScanLimit {
		markup = markup[:ScanLimit]
	}
	lower := strings.ToLower(markup)
	for _, m := range d.markers {
		if strings.Contains(lower, m) {
			return m, true
		}
	}
	return "", false
}

// LooksBlocked reports whether markup looks like a challenge page.
func (d *Detector) LooksBlocked(markup string) bool {
	_, blocked := d.Match(markup)
	return blocked
}

var std = New()

// Default returns the package-level detector.
func Default() *Detector { return std }

// LooksBlocked classifies markup with the default detector.
func LooksBlocked(markup string) bool { return std.LooksBlocked(markup) }

// Match reports the first default marker found in markup.
func Match(markup string) (string, bool) { return std.Match(markup) }
