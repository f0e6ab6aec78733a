/*
File: network_probe.go
Version: 1.4.0
Description: Network feature extraction: redirect chain, response latency and
             status, resolved address classification. The resolved IP is also
             checked against the local IOC CIDR ranges when a ranger is wired
             in, so a page served from a known-bad netblock surfaces as a
             feature even before the correlator weighs in.
*/

package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/yl2chen/cidranger"
)

const probeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type NetworkExtractor struct {
	cfg    NetworkFeaturesConfig
	client *http.Client
	ranger cidranger.Ranger // nil when no IOC ranges are configured
}

func NewNetworkExtractor(cfg NetworkFeaturesConfig, ranger cidranger.Ranger) *NetworkExtractor {
	e := &NetworkExtractor{cfg: cfg, ranger: ranger}
	e.client = &http.Client{
		Timeout: cfg.parsedRequestTimeout,
		Transport: &http.Transport{
			// Pages behind broken certificates are exactly the ones worth
			// inspecting; certificate validity is the host probe's feature.
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
	}
	return e
}

func (e *NetworkExtractor) Name() string     { return "network" }
func (e *NetworkExtractor) Category() string { return CategoryNetwork }

func (e *NetworkExtractor) Extract(ctx context.Context, rec *URLRecord) (PartialFeatures, error) {
	pf := make(PartialFeatures, 8)

	e.resolveFeatures(ctx, rec.Host, pf)
	e.requestFeatures(ctx, rec, pf)

	select {
	case <-ctx.Done():
		return pf, ErrExtractorTimeout
	default:
		return pf, nil
	}
}

func (e *NetworkExtractor) resolveFeatures(ctx context.Context, host string, pf PartialFeatures) {
	resolver := &net.Resolver{}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		LogDebug("[NETWORK] Resolve failed for %s: %v", host, err)
		return
	}

	pf["network_ip_resolved"] = 1
	ip := addrs[0].IP
	pf["network_ip_is_private"] = boolFeature(ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast())

	if e.ranger != nil {
		for _, a := range addrs {
			if hit, err := e.ranger.Contains(a.IP); err == nil && hit {
				pf["network_ioc_range_hit"] = 1
				break
			}
		}
	}
}

func (e *NetworkExtractor) requestFeatures(ctx context.Context, rec *URLRecord, pf PartialFeatures) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.Raw, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", probeUserAgent)

	// Per-request client copy: the redirect counter must not be shared
	// across concurrent assessments. Transport is reused.
	redirects := 0
	var finalURL *url.URL
	client := *e.client
	client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		redirects = len(via)
		if len(via) >= e.cfg.MaxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		LogDebug("[NETWORK] Request failed for %s: %v", rec.Raw, err)
		return
	}
	defer resp.Body.Close()

	pf["network_response_status"] = float64(resp.StatusCode)
	pf["network_response_time_ms"] = float64(time.Since(start).Milliseconds())
	pf["network_redirect_count"] = float64(redirects)

	finalURL = resp.Request.URL
	pf["network_final_https"] = boolFeature(finalURL.Scheme == "https")
	if !sameRegisteredDomain(rec, finalURL.Hostname()) {
		pf["network_redirect_cross_domain"] = 1
	}
}

func sameRegisteredDomain(rec *URLRecord, finalHost string) bool {
	if finalHost == rec.Host {
		return true
	}
	final, err := NormalizeURL(fmt.Sprintf("http://%s/", finalHost), 0)
	if err != nil {
		return false
	}
	return final.RegisteredDomain == rec.RegisteredDomain
}
