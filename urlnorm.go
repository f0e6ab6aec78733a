/*
File: urlnorm.go
Version: 1.1.0
Description: URL normalization. Turns a raw string into an immutable URLRecord
             with the registered domain and subdomain split out, or rejects it
             with ErrMalformedURL. Pure string work, no I/O.
*/

package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

var ErrMalformedURL = errors.New("malformed url")

// URLRecord is the parsed, canonical form of an input URL. It is never
// mutated after NormalizeURL returns; downstream stages hold read-only
// references.
type URLRecord struct {
	Raw              string // Input after sanitation (scheme forced, trimmed)
	Scheme           string
	Host             string // Lower-cased, punycoded, no port
	Port             int    // 0 when absent or default for the scheme
	Path             string
	Query            string
	Fragment         string
	RegisteredDomain string // Public-suffix-aware root, e.g. example.co.uk
	Subdomain        string // Everything left of the registered domain
	TLD              string // Effective TLD (public suffix)
	IsIP             bool   // Host is an IP literal
}

// NormalizeURL parses and canonicalizes a raw URL string.
// maxLength <= 0 disables the length check.
func NormalizeURL(raw string, maxLength int) (*URLRecord, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedURL)
	}
	if maxLength > 0 && len(s) > maxLength {
		return nil, fmt.Errorf("%w: exceeds maximum length %d", ErrMalformedURL, maxLength)
	}

	// Bare hostnames are accepted with an implicit http scheme.
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme '%s'", ErrMalformedURL, scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrMalformedURL)
	}

	// Resolve percent-encoding in the host before any classification.
	if decoded, err := url.PathUnescape(host); err == nil {
		host = strings.ToLower(decoded)
	}
	host = strings.TrimSuffix(host, ".")

	isIP := net.ParseIP(strings.Trim(host, "[]")) != nil

	// Unicode hosts are folded to punycode so lexical and intel stages
	// operate on a single canonical representation.
	if !isIP && !isASCII(host) {
		if ascii, err := idna.Lookup.ToASCII(host); err == nil {
			host = ascii
		}
	}

	port := 0
	if p := u.Port(); p != "" {
		fmt.Sscanf(p, "%d", &port)
		if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
			port = 0
		}
	}

	rec := &URLRecord{
		Raw:      s,
		Scheme:   scheme,
		Host:     host,
		Port:     port,
		Path:     u.Path,
		Query:    u.RawQuery,
		Fragment: u.Fragment,
		IsIP:     isIP,
	}

	if !isIP {
		suffix, _ := publicsuffix.PublicSuffix(host)
		rec.TLD = suffix
		if regd, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			rec.RegisteredDomain = regd
			if len(host) > len(regd) {
				rec.Subdomain = strings.TrimSuffix(host[:len(host)-len(regd)], ".")
			}
		} else {
			// Host is the bare suffix or unlisted; treat it whole.
			rec.RegisteredDomain = host
		}
	} else {
		rec.RegisteredDomain = host
	}

	return rec, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// SubdomainDepth counts the labels left of the registered domain.
func (r *URLRecord) SubdomainDepth() int {
	if r.Subdomain == "" {
		return 0
	}
	return strings.Count(r.Subdomain, ".") + 1
}
