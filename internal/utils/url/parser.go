package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// MaxSlugLength caps the URL-derived part of artifact file names.
const MaxSlugLength = 100

var nonWord = regexp.MustCompile(`[^A-Za-z0-9_]`)

// ValidateURL performs comprehensive URL validation
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	return nil
}

// Normalize reduces a URL to scheme, lowercased host and path. Query and
// fragment are dropped, default ports are removed, an empty path becomes
// "/" and a run of trailing slashes collapses to one. Unparseable input
// is returned unchanged so that it still compares equal to itself.
func Normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if h, port, err := net.SplitHostPort(host); err == nil {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			host = h
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if trimmed := strings.TrimRight(path, "/"); trimmed != path {
		path = trimmed + "/"
	}

	return scheme + "://" + host + path
}

// UniqueNormalized normalizes urls and drops repeats, keeping the first
// occurrence and the input order.
func UniqueNormalized(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		n := Normalize(raw)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Slug turns a URL into a file-name fragment: every character outside
// [A-Za-z0-9_] becomes "_" and the result is cut at MaxSlugLength.
func Slug(raw string) string {
	s := nonWord.ReplaceAllString(raw, "_")
	if len(s) > MaxSlugLength {
		s = s[:MaxSlugLength]
	}
	return s
}

// RegistrableDomain returns the eTLD+1 of the URL's host, or the bare
// host when the public suffix list has no answer.
func RegistrableDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// SameSite reports whether both URLs share a registrable domain.
func SameSite(a, b string) bool {
	da, db := RegistrableDomain(a), RegistrableDomain(b)
	return da != "" && da == db
}
