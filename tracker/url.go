package tracker

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidSourceURL marks a series URL that cannot be fetched as stored.
var ErrInvalidSourceURL = errors.New("invalid source url")

// ValidateURL rejects URLs that are not worth a navigation: a scheme other
// than http(s), a literal "..." from a truncated copy, an empty host, or an
// empty path. Every failure wraps ErrInvalidSourceURL.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "...") {
		return fmt.Errorf("%w: truncated (contains \"...\")", ErrInvalidSourceURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSourceURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not http(s)", ErrInvalidSourceURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidSourceURL)
	}
	if u.Path == "" || u.Path == "/" {
		return fmt.Errorf("%w: empty path", ErrInvalidSourceURL)
	}
	return nil
}
