/*
File: host_probe_test.go
Description: Tests for host probe availability semantics.
*/

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An IP-literal http URL skips the WHOIS and certificate probes, and a DNS
// server on a closed local port fails the remaining probe immediately: no
// sub-probe can succeed, so the category must report unavailable rather
// than claim evidence over pure defaults.
func TestHostExtractorUnavailableWhenAllProbesFail(t *testing.T) {
	cfg := &Config{}
	cfg.Features.Host.DNSServer = "127.0.0.1:1"
	cfg.Features.Host.DNSTimeout = "250ms"
	require.NoError(t, cfg.applyDefaults())

	e := NewHostExtractor(cfg.Features.Host)
	rec := testRecord(t, "http://192.0.2.10/x")

	pf, err := e.Extract(context.Background(), rec)
	assert.ErrorIs(t, err, ErrExtractorUnavailable)
	assert.Empty(t, pf, "failed probes must not emit partial defaults")
}

func TestHostExtractorTimeoutWinsOverUnavailable(t *testing.T) {
	cfg := &Config{}
	cfg.Features.Host.DNSServer = "127.0.0.1:1"
	require.NoError(t, cfg.applyDefaults())

	e := NewHostExtractor(cfg.Features.Host)
	rec := testRecord(t, "http://192.0.2.10/x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Extract(ctx, rec)
	assert.ErrorIs(t, err, ErrExtractorTimeout)
}
