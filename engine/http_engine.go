package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/chapterwatch/models"
)

// HTTPEngine fetches raw server markup without running JavaScript. It is
// the fastest option and works for sites that render their chapter list
// server side.
type HTTPEngine struct {
	client   *http.Client
	identity Identity
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

const (
	httpMaxRedirects = 10
	httpMaxBody      = 10 << 20
	httpDialTimeout  = 10 * time.Second
)

// dialChromeTLS opens a TCP connection and performs a handshake that
// presents chromeH1Spec.
func dialChromeTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	raw, err := (&net.Dialer{Timeout: httpDialTimeout}).DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	conn := tls.UClient(raw, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := conn.ApplyPreset(&chromeH1Spec); err != nil {
		raw.Close()
		return nil, fmt.Errorf("http_engine: apply tls preset: %w", err)
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

// NewHTTPEngine creates an HTTPEngine with a Chrome-like TLS fingerprint.
// An http(s) proxy tunnels requests; the fingerprint then applies to the
// proxy connection only.
func NewHTTPEngine(id Identity, proxy string) *HTTPEngine {
	transport := &http.Transport{DialTLSContext: dialChromeTLS}
	if u, err := url.Parse(proxy); proxy != "" && err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		transport.Proxy = http.ProxyURL(u)
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= httpMaxRedirects {
				return fmt.Errorf("http_engine: stopped after %d redirects", httpMaxRedirects)
			}
			return nil
		},
	}
	return &HTTPEngine{identity: id, client: client}
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "http_engine: build request", err)
	}

	httpReq.Header.Set("User-Agent", e.identity.UserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", e.identity.AcceptLanguage)
	httpReq.Header.Set("Accept-Encoding", "identity")
	if ref := googleReferer(req.URL); ref != "" {
		httpReq.Header.Set("Referer", ref)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, categorizeError(err, "http_engine: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpMaxBody))
	if err != nil {
		return nil, categorizeError(err, "http_engine: read body")
	}

	ct := resp.Header.Get("Content-Type")
	if !isHTMLContentType(ct) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("http_engine: non-html response %d (content-type: %s)", resp.StatusCode, ct), nil)
	}
	// Challenge pages arrive as 403/429/503 with HTML; hand them to the
	// detector instead of failing.
	if resp.StatusCode >= 400 && !challengeStatus(resp.StatusCode) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("http_engine: status %d", resp.StatusCode), nil)
	}

	bodyStr := string(body)
	return &FetchResult{
		HTML:       bodyStr,
		Title:      extractTitle(bodyStr),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

func challengeStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// googleReferer builds a search-result referer for the target host.
func googleReferer(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle returns the text of the first <title> element.
func extractTitle(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) != "title" {
				continue
			}
			if z.Next() != html.TextToken {
				return ""
			}
			return strings.TrimSpace(string(z.Text()))
		}
	}
}
