/*
File: lexical_data.go
Version: 1.0.0
Description: Static datasets for the lexical extractor. Separated from
             lexical.go to keep the scoring logic readable.
*/

package main

// --- 1. Phishing Keywords (social-engineering vocabulary) ---
// Hits anywhere in the lower-cased URL count toward
// pattern_suspicious_keyword_count.
var suspiciousKeywords = []string{
	"login", "signin", "verify", "verification", "account", "update",
	"secure", "banking", "confirm", "suspended", "locked", "unusual",
	"activity", "urgent", "immediately", "expire", "password",
	"credential", "billing", "payment", "refund", "prize", "winner",
}

// --- 2. Brand Keywords (impersonation targets) ---
// Matched both as substrings and via edit distance against host labels to
// catch typosquats like "paypa1" or "arnazon".
var brandKeywords = []string{
	"paypal", "amazon", "microsoft", "google", "apple", "facebook",
	"netflix", "instagram", "twitter", "linkedin", "ebay", "alibaba",
	"chase", "wellsfargo", "citibank", "hsbc", "coinbase", "binance",
}

// --- 3. URL Shortener Registered Domains ---
var shortenerDomains = map[string]struct{}{
	"bit.ly": {}, "goo.gl": {}, "t.co": {}, "tinyurl.com": {},
	"ow.ly": {}, "buff.ly": {}, "is.gd": {}, "tiny.cc": {},
	"cli.gs": {}, "rb.gy": {}, "cutt.ly": {}, "shorturl.at": {},
}

// --- 4. Suspicious TLDs (free or heavily abused registries) ---
var suspiciousTLDs = map[string]struct{}{
	"tk": {}, "ml": {}, "ga": {}, "cf": {}, "gq": {}, "xyz": {},
	"top": {}, "work": {}, "click": {}, "link": {}, "icu": {},
	"cyou": {}, "sbs": {}, "rest": {}, "buzz": {}, "cfd": {},
}

// --- 5. Known Certificate Authorities ---
// Issuer common names checked by the host extractor.
var knownCAs = []string{
	"let's encrypt", "digicert", "geotrust", "comodo", "sectigo",
	"globalsign", "symantec", "thawte", "rapidssl", "godaddy",
	"entrust", "amazon", "google trust services", "zerossl",
}

// --- 6. WHOIS Privacy Service Markers ---
var whoisPrivacyMarkers = []string{
	"privacy", "protect", "proxy", "whoisguard", "private", "redacted",
}

// --- 7. Brand Text Markers (content extractor) ---
// Phrases whose presence on a page strengthens an impersonation signal.
var brandTextMarkers = []string{
	"verify your account", "confirm your identity", "account suspended",
	"unusual activity", "update your payment", "session expired",
}
