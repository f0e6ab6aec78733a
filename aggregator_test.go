/*
File: aggregator_test.go
Description: Tests for risk banding, the intel floor, confidence, and reason
             generation.
*/

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultAggregator() *Aggregator {
	return NewAggregator(DefaultConfig().Risk)
}

func singleResult(p float64) []ClassificationResult {
	return []ClassificationResult{{ModelID: "m", Probability: p}}
}

func TestBandBoundaries(t *testing.T) {
	agg := defaultAggregator()
	cases := []struct {
		score float64
		level string
	}{
		{0.0, "SAFE"},
		{0.29, "SAFE"},
		{0.3, "LOW"},
		{0.49, "LOW"},
		{0.5, "MEDIUM"},
		{0.79, "MEDIUM"},
		{0.8, "HIGH"},
		{1.0, "HIGH"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, agg.bandFor(tc.score), "score %.2f", tc.score)
	}
}

func TestIntelFloorOverridesLowScore(t *testing.T) {
	agg := defaultAggregator()
	rec := testRecord(t, "http://flagged.test/")
	fv := NewFeatureVector()
	intel := ThreatIntelResult{
		Sources:   []string{"feed"},
		Payloads:  map[string]string{"feed": "listed"},
		FetchedAt: time.Now(),
	}

	v := agg.Aggregate(rec, fv, 0.05, singleResult(0.05), intel)
	assert.GreaterOrEqual(t, v.RiskScore, 0.9, "intel match must floor the score")
	assert.Equal(t, "HIGH", v.RiskLevel)
	assert.NotEqual(t, "SAFE", v.RiskLevel)
	assert.Equal(t, []string{"feed"}, v.ThreatIntelMatches)
	require.NotEmpty(t, v.Reasons)
	assert.Contains(t, v.Reasons[0], "threat-intel source 'feed'", "intel reasons come first")
}

func TestIntelFloorDoesNotLowerHigherScore(t *testing.T) {
	agg := defaultAggregator()
	rec := testRecord(t, "http://flagged.test/")
	intel := ThreatIntelResult{Sources: []string{"feed"}}

	v := agg.Aggregate(rec, NewFeatureVector(), 0.97, singleResult(0.97), intel)
	assert.InDelta(t, 0.97, v.RiskScore, 1e-9)
}

func TestVerdictShape(t *testing.T) {
	agg := defaultAggregator()
	rec := testRecord(t, "https://example.com/")
	fv := NewFeatureVector()
	fv.MergePartial(CategoryLexical, PartialFeatures{})

	v := agg.Aggregate(rec, fv, 0.1, singleResult(0.1), ThreatIntelResult{})
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, rec.Raw, v.URL)
	assert.Equal(t, "SAFE", v.RiskLevel)
	assert.Empty(t, v.ThreatIntelMatches)
	assert.ElementsMatch(t, []string{CategoryHost, CategoryNetwork, CategoryContent}, v.UnavailableCategories)

	_, err := time.Parse(time.RFC3339, v.Timestamp)
	assert.NoError(t, err)
}

func TestConfidenceReflectsAgreementAndCoverage(t *testing.T) {
	fv := NewFeatureVector()
	for _, cat := range featureCategories {
		fv.MergePartial(cat, PartialFeatures{})
	}

	agreed := []ClassificationResult{{Probability: 0.9}, {Probability: 0.9}}
	split := []ClassificationResult{{Probability: 0.1}, {Probability: 0.9}}

	assert.InDelta(t, 1.0, confidence(fv, agreed), 1e-9)
	assert.Less(t, confidence(fv, split), confidence(fv, agreed))

	partial := NewFeatureVector()
	partial.MergePartial(CategoryLexical, PartialFeatures{})
	assert.Less(t, confidence(partial, agreed), confidence(fv, agreed),
		"missing categories must reduce confidence")
	assert.Zero(t, confidence(fv, nil))
}

func TestReasonPriorityOrder(t *testing.T) {
	agg := defaultAggregator()
	rec := testRecord(t, "http://paypal-verify.tk/login")

	fv := NewFeatureVector()
	fv.MergePartial(CategoryLexical, PartialFeatures{
		"pattern_has_suspicious_tld": 1,
	})
	fv.MergePartial(CategoryHost, PartialFeatures{
		"host_whois_domain_age_days": 3,
		"host_whois_query_success":   1,
	})
	intel := ThreatIntelResult{Sources: []string{"feed"}}

	v := agg.Aggregate(rec, fv, 0.95, singleResult(0.95), intel)
	require.GreaterOrEqual(t, len(v.Reasons), 3)

	var intelIdx, hostIdx, lexIdx int = -1, -1, -1
	for i, r := range v.Reasons {
		switch {
		case strings.Contains(r, "threat-intel"):
			intelIdx = i
		case strings.Contains(r, "registered"):
			hostIdx = i
		case strings.Contains(r, "top-level domain"):
			lexIdx = i
		}
	}
	require.NotEqual(t, -1, intelIdx)
	require.NotEqual(t, -1, hostIdx)
	require.NotEqual(t, -1, lexIdx)
	assert.Less(t, intelIdx, hostIdx)
	assert.Less(t, hostIdx, lexIdx)
}

func TestReasonsDeterministic(t *testing.T) {
	agg := defaultAggregator()
	rec := testRecord(t, "http://login.paypa1-secure.tk/verify")
	fv := NewFeatureVector()
	fv.MergePartial(CategoryLexical, PartialFeatures{
		"pattern_has_suspicious_tld": 1,
		"pattern_brand_similarity":   0.8,
		"lexical_subdomain_depth":    1,
	})

	a := agg.Aggregate(rec, fv, 0.6, singleResult(0.6), ThreatIntelResult{})
	b := agg.Aggregate(rec, fv, 0.6, singleResult(0.6), ThreatIntelResult{})
	assert.Equal(t, a.Reasons, b.Reasons)
}
