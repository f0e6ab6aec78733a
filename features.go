/*
File: features.go
Version: 1.3.0
Description: Feature schema registry and vector assembly. The schema is fixed
             and versioned; every assessment produces a vector containing every
             declared name, with failed extractor output imputed from schema
             defaults and flagged through per-category availability features.
*/

package main

import (
	"context"
	"errors"
	"sort"
)

const featureSchemaVersion = "v1"

// Extractor categories. Lexical never does I/O and never times out; the
// others run under per-category deadlines and degrade to defaults.
const (
	CategoryLexical = "lexical"
	CategoryHost    = "host"
	CategoryNetwork = "network"
	CategoryContent = "content"
)

var (
	ErrExtractorTimeout     = errors.New("extractor timeout")
	ErrExtractorUnavailable = errors.New("extractor unavailable")
)

// PartialFeatures is the output of a single extractor.
type PartialFeatures map[string]float64

// FeatureVector is the merged, schema-complete feature map fed to the
// ensemble. Booleans are encoded as 0/1.
type FeatureVector map[string]float64

// Extractor is the fixed interface every feature source implements. The
// registry is assembled once at startup; no runtime discovery.
type Extractor interface {
	Name() string
	Category() string
	Extract(ctx context.Context, rec *URLRecord) (PartialFeatures, error)
}

type featureSpec struct {
	Name     string
	Category string
	Default  float64
}

// featureSchema declares every feature the ensemble may see. Order here is
// irrelevant; SchemaNames sorts for stable iteration. Defaults follow the
// unavailable-as-signal convention: counters default to 0, ages and
// latencies to -1 so a model can tell "none" from "unknown".
var featureSchema = []featureSpec{
	// Lexical: string statistics
	{"lexical_url_length", CategoryLexical, 0},
	{"lexical_host_length", CategoryLexical, 0},
	{"lexical_path_length", CategoryLexical, 0},
	{"lexical_query_length", CategoryLexical, 0},
	{"lexical_subdomain_length", CategoryLexical, 0},
	{"lexical_dot_count", CategoryLexical, 0},
	{"lexical_hyphen_count", CategoryLexical, 0},
	{"lexical_underscore_count", CategoryLexical, 0},
	{"lexical_slash_count", CategoryLexical, 0},
	{"lexical_question_count", CategoryLexical, 0},
	{"lexical_equal_count", CategoryLexical, 0},
	{"lexical_at_count", CategoryLexical, 0},
	{"lexical_ampersand_count", CategoryLexical, 0},
	{"lexical_percent_count", CategoryLexical, 0},
	{"lexical_digit_count", CategoryLexical, 0},
	{"lexical_letter_count", CategoryLexical, 0},
	{"lexical_digit_ratio", CategoryLexical, 0},
	{"lexical_letter_ratio", CategoryLexical, 0},
	{"lexical_path_token_count", CategoryLexical, 0},
	{"lexical_avg_path_token_length", CategoryLexical, 0},
	{"lexical_query_param_count", CategoryLexical, 0},
	{"lexical_subdomain_depth", CategoryLexical, 0},
	{"lexical_url_entropy", CategoryLexical, 0},
	{"lexical_host_entropy", CategoryLexical, 0},
	{"lexical_has_port", CategoryLexical, 0},
	{"lexical_has_fragment", CategoryLexical, 0},
	{"lexical_is_https", CategoryLexical, 0},
	{"lexical_max_consecutive_digits", CategoryLexical, 0},

	// Lexical: suspicious patterns
	{"pattern_is_ip_host", CategoryLexical, 0},
	{"pattern_is_url_shortener", CategoryLexical, 0},
	{"pattern_suspicious_keyword_count", CategoryLexical, 0},
	{"pattern_brand_keyword_count", CategoryLexical, 0},
	{"pattern_brand_similarity", CategoryLexical, 0},
	{"pattern_combined_keyword_count", CategoryLexical, 0},
	{"pattern_has_suspicious_tld", CategoryLexical, 0},
	{"pattern_hex_encoding_count", CategoryLexical, 0},
	{"pattern_non_ascii_count", CategoryLexical, 0},
	{"pattern_has_repeated_chars", CategoryLexical, 0},

	// Host: registration, DNS, certificate
	{"host_whois_domain_age_days", CategoryHost, -1},
	{"host_whois_days_until_expiry", CategoryHost, -1},
	{"host_whois_query_success", CategoryHost, 0},
	{"host_whois_privacy_protected", CategoryHost, 0},
	{"host_dns_a_count", CategoryHost, 0},
	{"host_dns_mx_count", CategoryHost, 0},
	{"host_dns_ns_count", CategoryHost, 0},
	{"host_dns_txt_count", CategoryHost, 0},
	{"host_dns_has_spf", CategoryHost, 0},
	{"host_dns_has_dmarc", CategoryHost, 0},
	{"host_dns_query_success", CategoryHost, 0},
	{"host_ssl_valid", CategoryHost, 0},
	{"host_ssl_issuer_known", CategoryHost, 0},
	{"host_ssl_self_signed", CategoryHost, 0},
	{"host_ssl_days_until_expiry", CategoryHost, -1},
	{"host_ssl_wildcard", CategoryHost, 0},

	// Network: redirects, latency, resolved address
	{"network_redirect_count", CategoryNetwork, 0},
	{"network_redirect_cross_domain", CategoryNetwork, 0},
	{"network_final_https", CategoryNetwork, 0},
	{"network_response_status", CategoryNetwork, -1},
	{"network_response_time_ms", CategoryNetwork, -1},
	{"network_ip_resolved", CategoryNetwork, 0},
	{"network_ip_is_private", CategoryNetwork, 0},
	{"network_ioc_range_hit", CategoryNetwork, 0},

	// Content: page body analysis (optional category)
	{"content_form_count", CategoryContent, 0},
	{"content_password_input_count", CategoryContent, 0},
	{"content_has_login_form", CategoryContent, 0},
	{"content_external_form_action", CategoryContent, 0},
	{"content_brand_text_hits", CategoryContent, 0},
	{"content_title_brand_mismatch", CategoryContent, 0},
}

var featureCategories = []string{CategoryLexical, CategoryHost, CategoryNetwork, CategoryContent}

// availabilityFeature is the companion flag feature for a category.
func availabilityFeature(category string) string {
	return category + "_available"
}

var schemaIndex = buildSchemaIndex()

func buildSchemaIndex() map[string]featureSpec {
	idx := make(map[string]featureSpec, len(featureSchema)+len(featureCategories))
	for _, spec := range featureSchema {
		idx[spec.Name] = spec
	}
	for _, cat := range featureCategories {
		idx[availabilityFeature(cat)] = featureSpec{Name: availabilityFeature(cat), Category: cat, Default: 0}
	}
	return idx
}

// SchemaNames returns every declared feature name, sorted. This is the
// contract the ensemble validates model files against.
func SchemaNames() []string {
	names := make([]string, 0, len(schemaIndex))
	for name := range schemaIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFeatureVector returns a vector pre-filled with schema defaults and all
// availability flags down.
func NewFeatureVector() FeatureVector {
	fv := make(FeatureVector, len(schemaIndex))
	for name, spec := range schemaIndex {
		fv[name] = spec.Default
	}
	return fv
}

// MergePartial copies an extractor's output into the vector and raises the
// category availability flag. Names outside the schema are dropped with a
// warning; extractors emitting them is a bug, not a runtime condition.
func (fv FeatureVector) MergePartial(category string, pf PartialFeatures) {
	for name, val := range pf {
		if _, ok := schemaIndex[name]; !ok {
			LogWarn("[FEATURES] Extractor emitted unknown feature '%s', dropping", name)
			continue
		}
		fv[name] = val
	}
	fv[availabilityFeature(category)] = 1
}

// MarkUnavailable re-imputes a category's defaults and lowers its flag.
// Used when an extractor times out after partially populating nothing.
func (fv FeatureVector) MarkUnavailable(category string) {
	for _, spec := range featureSchema {
		if spec.Category == category {
			fv[spec.Name] = spec.Default
		}
	}
	fv[availabilityFeature(category)] = 0
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
