/*
File: urlnorm_test.go
Description: Tests for URL normalization and registered-domain splitting.
*/

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURLCanonicalForm(t *testing.T) {
	rec, err := NormalizeURL("HTTP://WWW.Example.COM:80/Path?q=1#frag", 0)
	require.NoError(t, err)

	assert.Equal(t, "http", rec.Scheme)
	assert.Equal(t, "www.example.com", rec.Host)
	assert.Equal(t, 0, rec.Port, "default port must be stripped")
	assert.Equal(t, "/Path", rec.Path)
	assert.Equal(t, "q=1", rec.Query)
	assert.Equal(t, "frag", rec.Fragment)
	assert.Equal(t, "example.com", rec.RegisteredDomain)
	assert.Equal(t, "www", rec.Subdomain)
	assert.Equal(t, "com", rec.TLD)
	assert.False(t, rec.IsIP)
}

func TestNormalizeURLImplicitScheme(t *testing.T) {
	rec, err := NormalizeURL("example.com/login", 0)
	require.NoError(t, err)
	assert.Equal(t, "http", rec.Scheme)
	assert.Equal(t, "example.com", rec.Host)
}

func TestNormalizeURLNonDefaultPort(t *testing.T) {
	rec, err := NormalizeURL("https://example.com:8443/", 0)
	require.NoError(t, err)
	assert.Equal(t, 8443, rec.Port)

	rec, err = NormalizeURL("https://example.com:443/", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Port)
}

func TestNormalizeURLIPHost(t *testing.T) {
	rec, err := NormalizeURL("http://192.168.1.1/admin", 0)
	require.NoError(t, err)
	assert.True(t, rec.IsIP)
	assert.Equal(t, "192.168.1.1", rec.Host)
	assert.Equal(t, "192.168.1.1", rec.RegisteredDomain)
	assert.Empty(t, rec.TLD)
}

func TestNormalizeURLPunycode(t *testing.T) {
	rec, err := NormalizeURL("http://пример.рф/", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.Host, "xn--"), "unicode host must fold to punycode, got %s", rec.Host)
}

func TestNormalizeURLMultiLabelSuffix(t *testing.T) {
	rec, err := NormalizeURL("http://a.b.example.co.uk/", 0)
	require.NoError(t, err)
	assert.Equal(t, "example.co.uk", rec.RegisteredDomain)
	assert.Equal(t, "a.b", rec.Subdomain)
	assert.Equal(t, "co.uk", rec.TLD)
	assert.Equal(t, 2, rec.SubdomainDepth())
}

func TestNormalizeURLTrailingDot(t *testing.T) {
	rec, err := NormalizeURL("http://example.com./", 0)
	require.NoError(t, err)
	assert.Equal(t, "example.com", rec.Host)
}

func TestNormalizeURLRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		max  int
	}{
		{"empty", "", 0},
		{"whitespace only", "   ", 0},
		{"unsupported scheme", "ftp://example.com/file", 0},
		{"missing host", "http://", 0},
		{"over length limit", "http://example.com/aaaaaaaaaa", 10},
		{"space in host", "http://exa mple.com/", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeURL(tc.raw, tc.max)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedURL)
		})
	}
}
