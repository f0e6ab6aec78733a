/*
File: lexical.go
Version: 1.5.0
Description: Lexical and suspicious-pattern feature extraction. Pure string
             analysis over the URLRecord, deterministic, no I/O, completes in
             microseconds and therefore never runs under a deadline.
*/

package main

import (
	"context"
	"math"
	"strings"
)

type LexicalExtractor struct{}

func NewLexicalExtractor() *LexicalExtractor { return &LexicalExtractor{} }

func (e *LexicalExtractor) Name() string     { return "lexical" }
func (e *LexicalExtractor) Category() string { return CategoryLexical }

func (e *LexicalExtractor) Extract(_ context.Context, rec *URLRecord) (PartialFeatures, error) {
	url := rec.Raw
	urlLower := strings.ToLower(url)
	pf := make(PartialFeatures, 48)

	// Lengths
	pf["lexical_url_length"] = float64(len(url))
	pf["lexical_host_length"] = float64(len(rec.Host))
	pf["lexical_path_length"] = float64(len(rec.Path))
	pf["lexical_query_length"] = float64(len(rec.Query))
	pf["lexical_subdomain_length"] = float64(len(rec.Subdomain))

	// Character counts
	pf["lexical_dot_count"] = float64(strings.Count(url, "."))
	pf["lexical_hyphen_count"] = float64(strings.Count(url, "-"))
	pf["lexical_underscore_count"] = float64(strings.Count(url, "_"))
	pf["lexical_slash_count"] = float64(strings.Count(url, "/"))
	pf["lexical_question_count"] = float64(strings.Count(url, "?"))
	pf["lexical_equal_count"] = float64(strings.Count(url, "="))
	pf["lexical_at_count"] = float64(strings.Count(url, "@"))
	pf["lexical_ampersand_count"] = float64(strings.Count(url, "&"))
	pf["lexical_percent_count"] = float64(strings.Count(url, "%"))

	var digits, letters, maxDigitRun, digitRun int
	for i := 0; i < len(url); i++ {
		c := url[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
			digitRun++
			if digitRun > maxDigitRun {
				maxDigitRun = digitRun
			}
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			letters++
			digitRun = 0
		default:
			digitRun = 0
		}
	}
	pf["lexical_digit_count"] = float64(digits)
	pf["lexical_letter_count"] = float64(letters)
	urlLen := float64(len(url))
	if urlLen == 0 {
		urlLen = 1
	}
	pf["lexical_digit_ratio"] = float64(digits) / urlLen
	pf["lexical_letter_ratio"] = float64(letters) / urlLen
	pf["lexical_max_consecutive_digits"] = float64(maxDigitRun)

	// Path tokens
	var tokens []string
	for _, t := range strings.Split(rec.Path, "/") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	pf["lexical_path_token_count"] = float64(len(tokens))
	if len(tokens) > 0 {
		total := 0
		for _, t := range tokens {
			total += len(t)
		}
		pf["lexical_avg_path_token_length"] = float64(total) / float64(len(tokens))
	}

	// Query parameters
	params := 0
	if rec.Query != "" {
		params = strings.Count(rec.Query, "&") + 1
	}
	pf["lexical_query_param_count"] = float64(params)
	pf["lexical_subdomain_depth"] = float64(rec.SubdomainDepth())

	// Entropy
	pf["lexical_url_entropy"] = shannonEntropy(url)
	pf["lexical_host_entropy"] = shannonEntropy(rec.Host)

	// Flags
	pf["lexical_has_port"] = boolFeature(rec.Port != 0)
	pf["lexical_has_fragment"] = boolFeature(rec.Fragment != "")
	pf["lexical_is_https"] = boolFeature(rec.Scheme == "https")

	// Suspicious patterns
	pf["pattern_is_ip_host"] = boolFeature(rec.IsIP)
	_, shortened := shortenerDomains[rec.RegisteredDomain]
	pf["pattern_is_url_shortener"] = boolFeature(shortened)

	suspicious := countHits(urlLower, suspiciousKeywords)
	brands := countHits(urlLower, brandKeywords)
	pf["pattern_suspicious_keyword_count"] = float64(len(suspicious))
	pf["pattern_brand_keyword_count"] = float64(len(brands))
	combined := make(map[string]struct{}, len(suspicious)+len(brands))
	for _, k := range suspicious {
		combined[k] = struct{}{}
	}
	for _, k := range brands {
		combined[k] = struct{}{}
	}
	pf["pattern_combined_keyword_count"] = float64(len(combined))
	pf["pattern_brand_similarity"] = brandSimilarity(rec)

	_, riskyTLD := suspiciousTLDs[rec.TLD]
	pf["pattern_has_suspicious_tld"] = boolFeature(riskyTLD)

	pf["pattern_hex_encoding_count"] = float64(countHexEscapes(url))
	nonASCII := 0
	for _, r := range url {
		if r > 127 {
			nonASCII++
		}
	}
	pf["pattern_non_ascii_count"] = float64(nonASCII)
	pf["pattern_has_repeated_chars"] = boolFeature(hasRepeatedRun(urlLower, 3))

	return pf, nil
}

// SuspiciousHits returns the keyword and brand matches for reason text.
func (e *LexicalExtractor) SuspiciousHits(rec *URLRecord) (keywords, brands []string) {
	urlLower := strings.ToLower(rec.Raw)
	return countHits(urlLower, suspiciousKeywords), countHits(urlLower, brandKeywords)
}

func countHits(s string, list []string) []string {
	var hits []string
	for _, kw := range list {
		if strings.Contains(s, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

// brandSimilarity scores how close host labels come to a known brand without
// being the brand. An exact brand label in a foreign registered domain scores
// 1.0; one edit away scores 0.8. Official brand domains score 0.
func brandSimilarity(rec *URLRecord) float64 {
	if rec.IsIP {
		return 0
	}
	regLabel := rec.RegisteredDomain
	if i := strings.IndexByte(regLabel, '.'); i > 0 {
		regLabel = regLabel[:i]
	}

	best := 0.0
	labels := strings.Split(rec.Host, ".")
	for _, label := range labels {
		if len(label) < 4 {
			continue
		}
		for _, brand := range brandKeywords {
			if label == brand && regLabel == brand {
				// The brand's own domain, not an impersonation.
				continue
			}
			d := boundedEditDistance(label, brand, 2)
			switch d {
			case 0:
				best = math.Max(best, 1.0)
			case 1:
				best = math.Max(best, 0.8)
			case 2:
				if len(brand) >= 6 {
					best = math.Max(best, 0.5)
				}
			}
		}
	}
	return best
}

// boundedEditDistance computes Levenshtein distance, bailing out with max+1
// once the distance provably exceeds max. Two short rows, no full matrix.
func boundedEditDistance(a, b string, max int) int {
	la, lb := len(a), len(b)
	if abs(la-lb) > max {
		return max + 1
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		if rowMin > max {
			return max + 1
		}
		prev, curr = curr, prev
	}
	if prev[lb] > max {
		return max + 1
	}
	return prev[lb]
}

// shannonEntropy uses a zero-alloc stack array over bytes.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}

	var entropy float64
	total := float64(len(s))
	for _, count := range counts {
		if count > 0 {
			p := float64(count) / total
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

func countHexEscapes(s string) int {
	count := 0
	for i := 0; i+2 < len(s); i++ {
		if s[i] == '%' && isHexDigit(s[i+1]) && isHexDigit(s[i+2]) {
			count++
		}
	}
	return count
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// hasRepeatedRun reports a run of n+ identical consecutive characters.
func hasRepeatedRun(s string, n int) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
