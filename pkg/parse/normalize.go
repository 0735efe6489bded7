package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL standardizes a URL for dedup: scheme://host/path[?query].
// It lowercases the scheme and host, removes default ports, trims a trailing slash
// (unless the path is root), turns an empty path into "/", and drops the fragment.
// The query string is kept. Does not modify the input *url.URL.
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
		normalized.RawPath = ""
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = strings.TrimRight(normalized.Path, "/")
		normalized.RawPath = strings.TrimRight(normalized.RawPath, "/")
		if normalized.Path == "" {
			normalized.Path = "/"
			normalized.RawPath = ""
		}
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""
	normalized.ForceQuery = false

	return normalized.String()
}

// SeedURL turns a bare domain ("acme.com") or a full URL into the crawl seed.
// Bare domains get the https scheme.
func SeedURL(domain string) (*url.URL, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, fmt.Errorf("empty domain")
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("no host in %q", domain)
	}
	return u, nil
}

// RegistrableDomain returns the eTLD+1 of host ("www.acme.co.uk" -> "acme.co.uk").
// IP addresses and single-label hosts are returned unchanged (lower-cased, port stripped).
func RegistrableDomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return host
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}

// SameRegistrableDomain reports whether two hosts share an eTLD+1
func SameRegistrableDomain(a, b string) bool {
	return RegistrableDomain(a) == RegistrableDomain(b)
}

// BareDomain strips scheme, path and a leading "www." from user input ("https://www.Acme.com/x" -> "acme.com")
func BareDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if h, _, err := net.SplitHostPort(d); err == nil {
		d = h
	}
	return strings.TrimPrefix(d, "www.")
}
