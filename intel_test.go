/*
File: intel_test.go
Description: Tests for the threat-intel correlator: fan-out, caching, and
             failure degradation.
*/

package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name    string
	matched bool
	payload string
	err     error
	calls   int32
}

func (s *stubSource) Name() string                   { return s.name }
func (s *stubSource) CacheKey(rec *URLRecord) string { return rec.Host }

func (s *stubSource) Lookup(_ context.Context, _ *URLRecord) (bool, string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.matched, s.payload, s.err
}

func newTestCorrelator(t *testing.T, sources ...IntelSource) *Correlator {
	t.Helper()
	cfg := &Config{}
	for _, src := range sources {
		cfg.ThreatIntel.Sources = append(cfg.ThreatIntel.Sources, IntelSourceConfig{
			Name: src.Name(), QPS: 1000, Burst: 1000,
		})
	}
	require.NoError(t, cfg.applyDefaults())
	return NewCorrelator(cfg.ThreatIntel, sources)
}

func testRecord(t *testing.T, raw string) *URLRecord {
	t.Helper()
	rec, err := NormalizeURL(raw, 0)
	require.NoError(t, err)
	return rec
}

func TestCorrelatorAggregatesMatches(t *testing.T) {
	hit := &stubSource{name: "hit", matched: true, payload: "phishing"}
	miss := &stubSource{name: "miss"}
	c := newTestCorrelator(t, hit, miss)

	res := c.Check(context.Background(), testRecord(t, "http://evil.test/"))
	assert.True(t, res.Matched())
	assert.Equal(t, []string{"hit"}, res.Sources)
	assert.Equal(t, "phishing", res.Payloads["hit"])
}

func TestCorrelatorCachesResults(t *testing.T) {
	src := &stubSource{name: "feed", matched: true, payload: "listed"}
	c := newTestCorrelator(t, src)
	rec := testRecord(t, "http://evil.test/")

	for i := 0; i < 5; i++ {
		res := c.Check(context.Background(), rec)
		assert.True(t, res.Matched())
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls), "repeat checks must come from cache")
}

func TestCorrelatorFailureDegradesAndIsNotCached(t *testing.T) {
	src := &stubSource{name: "flaky", err: errors.New("upstream down")}
	c := newTestCorrelator(t, src)
	rec := testRecord(t, "http://evil.test/")

	res := c.Check(context.Background(), rec)
	assert.False(t, res.Matched(), "a failing source is a no-match, never an error")

	c.Check(context.Background(), rec)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls), "failures must be retried, not cached")
}

func TestCorrelatorLookupOutlivesCallerCancellation(t *testing.T) {
	src := &stubSource{name: "feed", matched: true, payload: "listed"}
	c := newTestCorrelator(t, src)
	rec := testRecord(t, "http://evil.test/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Check(ctx, rec)
	assert.True(t, res.Matched(), "a cancelled caller must not poison the shared lookup")

	res = c.Check(context.Background(), rec)
	assert.True(t, res.Matched())
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls), "the detached lookup result is cached")
}

func TestCorrelatorNoSources(t *testing.T) {
	c := newTestCorrelator(t)
	res := c.Check(context.Background(), testRecord(t, "http://anything.test/"))
	assert.False(t, res.Matched())
	assert.Empty(t, res.Sources)
}

func TestCorrelatorUnconfiguredSourceSkipped(t *testing.T) {
	configured := &stubSource{name: "known", matched: true}
	orphan := &stubSource{name: "orphan", matched: true}

	cfg := &Config{}
	cfg.ThreatIntel.Sources = []IntelSourceConfig{{Name: "known", QPS: 1000, Burst: 1000}}
	require.NoError(t, cfg.applyDefaults())

	c := NewCorrelator(cfg.ThreatIntel, []IntelSource{configured, orphan})
	res := c.Check(context.Background(), testRecord(t, "http://evil.test/"))

	assert.Equal(t, []string{"known"}, res.Sources)
	assert.Zero(t, atomic.LoadInt32(&orphan.calls))
}
