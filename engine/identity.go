package engine

// Identity is the browser persona an engine presents: user agent, locale,
// timezone, viewport and Accept-Language.
type Identity struct {
	UserAgent      string
	Locale         string
	Timezone       string
	AcceptLanguage string
	ViewportWidth  int
	ViewportHeight int
}

const (
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	firefoxUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0"
	safariUA  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15"
)

// DefaultIdentity returns a Spanish-locale persona whose user agent matches
// the engine's real browser family.
func DefaultIdentity(engineName string) Identity {
	id := Identity{
		UserAgent:      chromeUA,
		Locale:         "es-ES",
		Timezone:       "Europe/Madrid",
		AcceptLanguage: "es-ES,es;q=0.9,en;q=0.8",
		ViewportWidth:  1366,
		ViewportHeight: 768,
	}
	switch engineName {
	case "firefox":
		id.UserAgent = firefoxUA
	case "webkit":
		id.UserAgent = safariUA
		id.ViewportWidth, id.ViewportHeight = 1440, 900
	}
	return id
}

// With overlays non-empty fields of o onto id.
func (id Identity) With(o Identity) Identity {
	if o.UserAgent != "" {
		id.UserAgent = o.UserAgent
	}
	if o.Locale != "" {
		id.Locale = o.Locale
	}
	if o.Timezone != "" {
		id.Timezone = o.Timezone
	}
	if o.AcceptLanguage != "" {
		id.AcceptLanguage = o.AcceptLanguage
	}
	if o.ViewportWidth > 0 && o.ViewportHeight > 0 {
		id.ViewportWidth, id.ViewportHeight = o.ViewportWidth, o.ViewportHeight
	}
	return id
}

// ScrollJS scrolls to the bottom in viewport steps so lazy chapter lists
// render, then returns to the top.
const ScrollJS = `async () => {
	const step = Math.max(window.innerHeight, 400);
	for (let y = 0; y < document.body.scrollHeight && y < 40 * step; y += step) {
		window.scrollTo(0, y);
		await new Promise(r => setTimeout(r, 120));
	}
	window.scrollTo(0, document.body.scrollHeight);
	await new Promise(r => setTimeout(r, 200));
	window.scrollTo(0, 0);
}`
