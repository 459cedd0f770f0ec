package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that raw is an absolute HTTP or HTTPS URL with a host.
// The URL is not normalized: callers keep using raw as the dedupe key.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: url is empty", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: parse url: %w", ErrInvalidInput, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%w: url %q is not absolute", ErrInvalidInput, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url %q has no host", ErrInvalidInput, raw)
	}
	return nil
}

// IsCrawlable reports whether raw may enter the frontier.
func IsCrawlable(raw string) bool {
	return ValidateURL(raw) == nil
}

// siteOf returns the lowercase hostname used to label progress events.
func siteOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
