/*
File: content_probe.go
Version: 1.2.0
Description: Optional page-content feature extraction. Fetches a size-capped
             body and inspects it for credential-harvesting markers: login
             forms, password inputs, off-domain form actions, and brand
             impersonation text. Disabled by default; fetching attacker
             content is an additional trust surface.
*/

package main

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type ContentExtractor struct {
	cfg    ContentFeaturesConfig
	client *http.Client
}

func NewContentExtractor(cfg ContentFeaturesConfig) *ContentExtractor {
	return &ContentExtractor{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.parsedFetchTimeout,
			Transport: &http.Transport{
				TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
				DisableKeepAlives: true,
			},
		},
	}
}

func (e *ContentExtractor) Name() string     { return "content" }
func (e *ContentExtractor) Category() string { return CategoryContent }

func (e *ContentExtractor) Extract(ctx context.Context, rec *URLRecord) (PartialFeatures, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.Raw, nil)
	if err != nil {
		return nil, ErrExtractorUnavailable
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		LogDebug("[CONTENT] Fetch failed for %s: %v", rec.Raw, err)
		return nil, ErrExtractorUnavailable
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, e.cfg.MaxBodyBytes)
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		LogDebug("[CONTENT] Parse failed for %s: %v", rec.Raw, err)
		return nil, ErrExtractorUnavailable
	}

	pf := make(PartialFeatures, 8)

	forms := doc.Find("form")
	pf["content_form_count"] = float64(forms.Length())

	passwordInputs := doc.Find("input[type='password']")
	pf["content_password_input_count"] = float64(passwordInputs.Length())
	pf["content_has_login_form"] = boolFeature(passwordInputs.Length() > 0)

	externalAction := false
	forms.Each(func(_ int, form *goquery.Selection) {
		action, ok := form.Attr("action")
		if !ok || action == "" {
			return
		}
		target, err := url.Parse(action)
		if err != nil || target.Hostname() == "" {
			return
		}
		if !sameRegisteredDomain(rec, strings.ToLower(target.Hostname())) {
			externalAction = true
		}
	})
	pf["content_external_form_action"] = boolFeature(externalAction)

	text := strings.ToLower(doc.Text())
	hits := 0
	for _, marker := range brandTextMarkers {
		if strings.Contains(text, marker) {
			hits++
		}
	}
	pf["content_brand_text_hits"] = float64(hits)

	// A page titled after a brand that is absent from the registered domain
	// is a strong impersonation signal.
	title := strings.ToLower(doc.Find("title").First().Text())
	mismatch := false
	for _, brand := range brandKeywords {
		if strings.Contains(title, brand) && !strings.Contains(rec.RegisteredDomain, brand) {
			mismatch = true
			break
		}
	}
	pf["content_title_brand_mismatch"] = boolFeature(mismatch)

	return pf, nil
}
