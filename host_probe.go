/*
File: host_probe.go
Version: 1.6.0
Description: Host-based feature extraction: WHOIS registration age, DNS record
             presence (A/MX/NS/TXT), and TLS certificate inspection. The three
             probes run concurrently, each under its own timeout; a failed
             probe leaves its features at schema defaults instead of aborting
             the category.
*/

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/likexian/whois"
	"github.com/miekg/dns"
)

type HostExtractor struct {
	cfg       HostFeaturesConfig
	dnsClient *dns.Client
	dnsServer string
	whois     *whois.Client
}

func NewHostExtractor(cfg HostFeaturesConfig) *HostExtractor {
	server := cfg.DNSServer
	if server == "" {
		if rc, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(rc.Servers) > 0 {
			server = net.JoinHostPort(rc.Servers[0], rc.Port)
		} else {
			server = "8.8.8.8:53"
		}
	}

	wc := whois.NewClient()
	wc.SetTimeout(cfg.parsedWhoisTimeout)

	return &HostExtractor{
		cfg:       cfg,
		dnsClient: &dns.Client{Timeout: cfg.parsedDNSTimeout},
		dnsServer: server,
		whois:     wc,
	}
}

func (e *HostExtractor) Name() string     { return "host" }
func (e *HostExtractor) Category() string { return CategoryHost }

func (e *HostExtractor) Extract(ctx context.Context, rec *URLRecord) (PartialFeatures, error) {
	pf := make(PartialFeatures, 16)
	var mu sync.Mutex
	var wg sync.WaitGroup
	probeHits := 0

	// Probes that fail outright return an empty partial; only non-empty
	// output counts as gathered evidence.
	merge := func(part PartialFeatures) {
		if len(part) == 0 {
			return
		}
		mu.Lock()
		for k, v := range part {
			pf[k] = v
		}
		probeHits++
		mu.Unlock()
	}

	if !rec.IsIP {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wctx, cancel := context.WithTimeout(ctx, e.cfg.parsedWhoisTimeout)
			defer cancel()
			merge(e.whoisFeatures(wctx, rec.RegisteredDomain))
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		dctx, cancel := context.WithTimeout(ctx, e.cfg.parsedDNSTimeout)
		defer cancel()
		merge(e.dnsFeatures(dctx, rec.Host))
	}()

	if rec.Scheme == "https" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			merge(e.tlsFeatures(ctx, rec))
		}()
	}

	wg.Wait()

	select {
	case <-ctx.Done():
		return pf, ErrExtractorTimeout
	default:
	}
	if probeHits == 0 {
		// Nothing answered; the category must not claim availability over
		// a vector of pure defaults.
		return pf, ErrExtractorUnavailable
	}
	return pf, nil
}

// --- WHOIS ---

func (e *HostExtractor) whoisFeatures(ctx context.Context, domain string) PartialFeatures {
	pf := PartialFeatures{}

	type whoisReply struct {
		raw string
		err error
	}
	ch := make(chan whoisReply, 1)
	go func() {
		raw, err := e.whois.Whois(domain)
		ch <- whoisReply{raw, err}
	}()

	var raw string
	select {
	case <-ctx.Done():
		LogDebug("[HOST] WHOIS timed out for %s", domain)
		return pf
	case r := <-ch:
		if r.err != nil {
			LogDebug("[HOST] WHOIS failed for %s: %v", domain, r.err)
			return pf
		}
		raw = r.raw
	}

	now := time.Now()
	if created, ok := scanWhoisDate(raw, "creation date", "created", "registered on", "registration time"); ok {
		pf["host_whois_domain_age_days"] = float64(int(now.Sub(created).Hours() / 24))
		pf["host_whois_query_success"] = 1
	}
	if expires, ok := scanWhoisDate(raw, "registry expiry date", "expiry date", "expiration date", "paid-till"); ok {
		pf["host_whois_days_until_expiry"] = float64(int(expires.Sub(now).Hours() / 24))
		pf["host_whois_query_success"] = 1
	}

	rawLower := strings.ToLower(raw)
	if i := strings.Index(rawLower, "registrar:"); i >= 0 {
		line := rawLower[i:]
		if j := strings.IndexByte(line, '\n'); j >= 0 {
			line = line[:j]
		}
		for _, marker := range whoisPrivacyMarkers {
			if strings.Contains(line, marker) {
				pf["host_whois_privacy_protected"] = 1
				break
			}
		}
	}
	return pf
}

// scanWhoisDate finds the first of the given field labels in the raw reply
// and parses the value after the colon. Registries disagree on both labels
// and formats, so several layouts are tried.
func scanWhoisDate(raw string, labels ...string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02-Jan-2006",
		"2006.01.02",
		"02.01.2006",
	}

	for _, line := range strings.Split(raw, "\n") {
		lower := strings.ToLower(line)
		for _, label := range labels {
			idx := strings.Index(lower, label)
			if idx < 0 {
				continue
			}
			rest := line[idx+len(label):]
			if c := strings.IndexByte(rest, ':'); c >= 0 {
				rest = rest[c+1:]
			}
			val := strings.TrimSpace(rest)
			if val == "" {
				continue
			}
			// Some registries append a trailing zone like "(UTC+2)".
			if sp := strings.IndexByte(val, ' '); sp > 0 && strings.ContainsAny(val[sp:], "()") {
				val = val[:sp]
			}
			for _, layout := range layouts {
				if t, err := time.Parse(layout, val); err == nil {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

// --- DNS ---

func (e *HostExtractor) dnsFeatures(ctx context.Context, host string) PartialFeatures {
	pf := PartialFeatures{}
	fqdn := dns.Fqdn(host)
	anySuccess := false

	query := func(qtype uint16) []dns.RR {
		m := new(dns.Msg)
		m.SetQuestion(fqdn, qtype)
		m.RecursionDesired = true
		resp, _, err := e.dnsClient.ExchangeContext(ctx, m, e.dnsServer)
		if err != nil || resp == nil {
			return nil
		}
		anySuccess = true
		return resp.Answer
	}

	if answers := query(dns.TypeA); answers != nil {
		count := 0
		for _, rr := range answers {
			if _, ok := rr.(*dns.A); ok {
				count++
			}
		}
		pf["host_dns_a_count"] = float64(count)
	}
	if answers := query(dns.TypeMX); answers != nil {
		count := 0
		for _, rr := range answers {
			if _, ok := rr.(*dns.MX); ok {
				count++
			}
		}
		pf["host_dns_mx_count"] = float64(count)
	}
	if answers := query(dns.TypeNS); answers != nil {
		count := 0
		for _, rr := range answers {
			if _, ok := rr.(*dns.NS); ok {
				count++
			}
		}
		pf["host_dns_ns_count"] = float64(count)
	}
	if answers := query(dns.TypeTXT); answers != nil {
		count := 0
		for _, rr := range answers {
			txt, ok := rr.(*dns.TXT)
			if !ok {
				continue
			}
			count++
			joined := strings.ToLower(strings.Join(txt.Txt, ""))
			if strings.Contains(joined, "v=spf1") {
				pf["host_dns_has_spf"] = 1
			}
			if strings.Contains(joined, "v=dmarc1") {
				pf["host_dns_has_dmarc"] = 1
			}
		}
		pf["host_dns_txt_count"] = float64(count)
	}

	if !anySuccess {
		return PartialFeatures{}
	}
	pf["host_dns_query_success"] = 1
	return pf
}

// --- TLS Certificate ---

func (e *HostExtractor) tlsFeatures(ctx context.Context, rec *URLRecord) PartialFeatures {
	pf := PartialFeatures{}

	port := rec.Port
	if port == 0 {
		port = 443
	}
	addr := net.JoinHostPort(rec.Host, strconv.Itoa(port))

	dialer := &net.Dialer{Timeout: e.cfg.parsedTLSTimeout}
	// Verification is disabled for the handshake so invalid certificates can
	// still be inspected; validity is recomputed below.
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
		ServerName:         rec.Host,
		InsecureSkipVerify: true,
	})
	if err != nil {
		LogDebug("[HOST] TLS probe failed for %s: %v", addr, err)
		return pf
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return pf
	}
	leaf := certs[0]
	now := time.Now()

	valid := now.After(leaf.NotBefore) && now.Before(leaf.NotAfter) &&
		leaf.VerifyHostname(rec.Host) == nil
	if valid && len(certs) > 1 {
		pool := x509.NewCertPool()
		for _, c := range certs[1:] {
			pool.AddCert(c)
		}
		if _, err := leaf.Verify(x509.VerifyOptions{Intermediates: pool, CurrentTime: now}); err != nil {
			// Chain does not anchor to a system root
			valid = false
		}
	}
	pf["host_ssl_valid"] = boolFeature(valid)
	pf["host_ssl_days_until_expiry"] = float64(int(leaf.NotAfter.Sub(now).Hours() / 24))
	pf["host_ssl_self_signed"] = boolFeature(leaf.Issuer.String() == leaf.Subject.String())

	issuer := strings.ToLower(leaf.Issuer.CommonName)
	for _, ca := range knownCAs {
		if strings.Contains(issuer, ca) {
			pf["host_ssl_issuer_known"] = 1
			break
		}
	}

	for _, name := range leaf.DNSNames {
		if strings.HasPrefix(name, "*.") {
			pf["host_ssl_wildcard"] = 1
			break
		}
	}
	return pf
}
