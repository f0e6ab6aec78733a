/*
File: aggregator.go
Version: 1.2.0
Description: Risk aggregation. Turns the combined ensemble score, intel result
             and feature vector into a RiskVerdict: score, banded level,
             confidence, and deterministic human-readable reasons.
*/

package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RiskVerdict is the final output of one assessment.
type RiskVerdict struct {
	ID                    string   `json:"id"`
	URL                   string   `json:"url"`
	RiskScore             float64  `json:"risk_score"`
	RiskLevel             string   `json:"risk_level"`
	Confidence            float64  `json:"confidence"`
	Reasons               []string `json:"reasons"`
	ThreatIntelMatches    []string `json:"threat_intel_matches"`
	UnavailableCategories []string `json:"unavailable_categories"`
	Timestamp             string   `json:"timestamp"`
}

type Aggregator struct {
	intelFloor float64
	bands      []RiskBand
}

func NewAggregator(cfg RiskConfig) *Aggregator {
	bands := make([]RiskBand, len(cfg.Bands))
	copy(bands, cfg.Bands)
	sort.Slice(bands, func(i, j int) bool { return bands[i].Min < bands[j].Min })
	return &Aggregator{intelFloor: cfg.IntelFloor, bands: bands}
}

// Aggregate builds the verdict. A threat-intel match floors the score at the
// configured intel floor regardless of what the ensemble said: a confirmed
// indicator outranks any model opinion.
func (a *Aggregator) Aggregate(rec *URLRecord, fv FeatureVector, score float64, results []ClassificationResult, intel ThreatIntelResult) *RiskVerdict {
	score = clamp01(score)
	if intel.Matched() && score < a.intelFloor {
		score = a.intelFloor
	}

	matches := append([]string(nil), intel.Sources...)
	sort.Strings(matches)

	v := &RiskVerdict{
		ID:                    uuid.New().String(),
		URL:                   rec.Raw,
		RiskScore:             round4(score),
		RiskLevel:             a.bandFor(score),
		Confidence:            round4(confidence(fv, results)),
		Reasons:               buildReasons(rec, fv, intel),
		ThreatIntelMatches:    matches,
		UnavailableCategories: unavailableCategories(fv),
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
	}
	return v
}

// bandFor maps a score onto the band table. Bands are half-open [min,max)
// except the last, which is closed so 1.0 lands in the top band.
func (a *Aggregator) bandFor(score float64) string {
	for i, b := range a.bands {
		if i == len(a.bands)-1 {
			if score >= b.Min && score <= b.Max {
				return b.Level
			}
			continue
		}
		if score >= b.Min && score < b.Max {
			return b.Level
		}
	}
	// Unreachable with validated bands, but never return an empty level.
	return a.bands[len(a.bands)-1].Level
}

// confidence reflects model agreement, discounted by missing feature
// categories. Full agreement with every category present scores 1.0.
func confidence(fv FeatureVector, results []ClassificationResult) float64 {
	if len(results) == 0 {
		return 0
	}

	var sum float64
	for _, r := range results {
		sum += r.Probability
	}
	mean := sum / float64(len(results))

	var spread float64
	for _, r := range results {
		spread += math.Abs(r.Probability - mean)
	}
	spread /= float64(len(results))
	agreement := 1.0 - 2.0*spread

	available := 0
	for _, cat := range featureCategories {
		if fv[availabilityFeature(cat)] == 1 {
			available++
		}
	}
	coverage := float64(available) / float64(len(featureCategories))

	return clamp01(agreement * (0.5 + 0.5*coverage))
}

func unavailableCategories(fv FeatureVector) []string {
	var missing []string
	for _, cat := range featureCategories {
		if fv[availabilityFeature(cat)] != 1 {
			missing = append(missing, cat)
		}
	}
	return missing
}

// buildReasons emits explanations in fixed priority order: intel matches
// first, then host, network, and lexical signals. Same vector, same reasons.
func buildReasons(rec *URLRecord, fv FeatureVector, intel ThreatIntelResult) []string {
	var reasons []string

	if intel.Matched() {
		sources := append([]string(nil), intel.Sources...)
		sort.Strings(sources)
		for _, src := range sources {
			r := fmt.Sprintf("flagged by threat-intel source '%s'", src)
			if payload := intel.Payloads[src]; payload != "" {
				r += ": " + payload
			}
			reasons = append(reasons, r)
		}
	}

	if fv[availabilityFeature(CategoryHost)] == 1 {
		if age := fv["host_whois_domain_age_days"]; age >= 0 && age < 30 {
			reasons = append(reasons, fmt.Sprintf("domain registered %.0f days ago", age))
		}
		if fv["host_whois_privacy_protected"] == 1 {
			reasons = append(reasons, "registrant hidden behind privacy service")
		}
		if fv["host_ssl_self_signed"] == 1 {
			reasons = append(reasons, "certificate is self-signed")
		} else if fv["host_ssl_valid"] == 0 && fv["lexical_is_https"] == 1 {
			reasons = append(reasons, "certificate failed validation")
		}
		if fv["host_dns_mx_count"] == 0 && fv["host_dns_query_success"] == 1 {
			reasons = append(reasons, "domain has no mail infrastructure")
		}
	}

	if fv[availabilityFeature(CategoryNetwork)] == 1 {
		if fv["network_ioc_range_hit"] == 1 {
			reasons = append(reasons, "resolves into a known-bad address range")
		}
		if fv["network_ip_is_private"] == 1 {
			reasons = append(reasons, "resolves to a private or loopback address")
		}
		if fv["network_redirect_cross_domain"] == 1 {
			reasons = append(reasons, "redirects to a different registered domain")
		}
		if fv["network_redirect_count"] >= 3 {
			reasons = append(reasons, fmt.Sprintf("long redirect chain (%.0f hops)", fv["network_redirect_count"]))
		}
		if fv["network_final_https"] == 0 && fv["network_response_status"] > 0 {
			reasons = append(reasons, "final destination is not HTTPS")
		}
	}

	if fv[availabilityFeature(CategoryContent)] == 1 {
		if fv["content_has_login_form"] == 1 && fv["content_external_form_action"] == 1 {
			reasons = append(reasons, "login form submits credentials to another domain")
		} else if fv["content_has_login_form"] == 1 && fv["content_brand_text_hits"] > 0 {
			reasons = append(reasons, "login form on a page impersonating a known brand")
		}
	}

	if fv["pattern_is_ip_host"] == 1 {
		reasons = append(reasons, "host is a raw IP address")
	}
	if fv["pattern_is_url_shortener"] == 1 {
		reasons = append(reasons, "host is a URL shortening service")
	}
	if fv["pattern_brand_similarity"] >= 0.5 {
		reasons = append(reasons, "domain imitates a well-known brand name")
	}
	if fv["pattern_has_suspicious_tld"] == 1 {
		reasons = append(reasons, "top-level domain '"+rec.TLD+"' is frequently abused")
	}
	if kw, _ := NewLexicalExtractor().SuspiciousHits(rec); len(kw) > 0 {
		reasons = append(reasons, "suspicious keywords in URL: "+joinMax(kw, 5))
	}
	if fv["lexical_at_count"] > 0 {
		reasons = append(reasons, "URL contains '@', which can disguise the real host")
	}
	if fv["lexical_subdomain_depth"] >= 3 {
		reasons = append(reasons, fmt.Sprintf("unusually deep subdomain nesting (%.0f levels)", fv["lexical_subdomain_depth"]))
	}
	if fv["lexical_url_length"] >= 100 {
		reasons = append(reasons, fmt.Sprintf("unusually long URL (%.0f characters)", fv["lexical_url_length"]))
	}
	if fv["lexical_host_entropy"] >= 4.0 {
		reasons = append(reasons, "high-entropy host name suggests random generation")
	}

	return reasons
}

func joinMax(items []string, max int) string {
	if len(items) > max {
		items = items[:max]
	}
	return strings.Join(items, ", ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
