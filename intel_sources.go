/*
File: intel_sources.go
Version: 1.5.0
Description: Built-in threat-intel source adapters: line-oriented URL feeds,
             HTTP reputation APIs, and local IOC files with domain and CIDR
             indicators.
*/

package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/yl2chen/cidranger"
)

// BuildIntelSources constructs adapters from configuration. The returned
// ranger aggregates every CIDR indicator seen in iocfile sources so the
// network extractor can flag resolved addresses inside known-bad ranges.
func BuildIntelSources(cfg ThreatIntelConfig) ([]IntelSource, cidranger.Ranger, error) {
	var sources []IntelSource
	var ranger cidranger.Ranger

	for i := range cfg.Sources {
		sc := &cfg.Sources[i]
		switch sc.Type {
		case "feed":
			sources = append(sources, NewFeedSource(sc))
		case "api":
			sources = append(sources, NewAPISource(sc))
		case "iocfile":
			src, err := NewLocalIOCSource(sc)
			if err != nil {
				return nil, nil, fmt.Errorf("intel source '%s': %w", sc.Name, err)
			}
			sources = append(sources, src)
			if src.ranger != nil {
				ranger = src.ranger
			}
		default:
			return nil, nil, fmt.Errorf("intel source '%s': unknown type '%s'", sc.Name, sc.Type)
		}
	}
	return sources, ranger, nil
}

// --- Feed Source ---
// A line-oriented feed of known-phishing URLs (OpenPhish shape), fetched
// from an HTTP endpoint or read from disk and held as an in-memory set.
// The snapshot refreshes lazily once it outlives the source TTL.

type FeedSource struct {
	name    string
	feedURL string
	path    string
	ttl     time.Duration
	client  *http.Client

	mu       sync.RWMutex
	urls     map[string]struct{}
	loadedAt time.Time
}

func NewFeedSource(sc *IntelSourceConfig) *FeedSource {
	return &FeedSource{
		name:    sc.Name,
		feedURL: sc.URL,
		path:    sc.Path,
		ttl:     sc.parsedTTL,
		client:  &http.Client{Timeout: sc.parsedTimeout},
	}
}

func (s *FeedSource) Name() string { return s.name }

func (s *FeedSource) CacheKey(rec *URLRecord) string {
	// Exact-URL feed: key by digest, not host, so two URLs on one host
	// never shadow each other.
	sum := sha256.Sum256([]byte(normalizeFeedURL(rec.Raw)))
	return hex.EncodeToString(sum[:16])
}

func (s *FeedSource) Lookup(ctx context.Context, rec *URLRecord) (bool, string, error) {
	if err := s.refreshIfStale(ctx); err != nil {
		return false, "", err
	}

	needle := normalizeFeedURL(rec.Raw)
	s.mu.RLock()
	_, hit := s.urls[needle]
	s.mu.RUnlock()

	if hit {
		return true, "listed in feed", nil
	}
	return false, "", nil
}

func (s *FeedSource) refreshIfStale(ctx context.Context) error {
	s.mu.RLock()
	fresh := s.urls != nil && time.Since(s.loadedAt) < s.ttl
	s.mu.RUnlock()
	if fresh {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.urls != nil && time.Since(s.loadedAt) < s.ttl {
		return nil
	}

	var reader io.ReadCloser
	switch {
	case s.path != "":
		f, err := os.Open(s.path)
		if err != nil {
			return err
		}
		reader = f
	case s.feedURL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
		if err != nil {
			return err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("feed fetch: unexpected status %d", resp.StatusCode)
		}
		reader = resp.Body
	default:
		return fmt.Errorf("feed source '%s' has neither url nor path", s.name)
	}
	defer reader.Close()

	urls := make(map[string]struct{}, 4096)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls[normalizeFeedURL(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	s.urls = urls
	s.loadedAt = time.Now()
	LogInfo("[INTEL] Feed '%s' refreshed (%d entries)", s.name, len(urls))
	return nil
}

func normalizeFeedURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}

// --- API Source ---
// HTTP POST reputation endpoint (URLhaus shape): form-encoded URL in, JSON
// verdict out.

type APISource struct {
	name   string
	apiURL string
	apiKey string
	client *http.Client
}

func NewAPISource(sc *IntelSourceConfig) *APISource {
	return &APISource{
		name:   sc.Name,
		apiURL: sc.URL,
		apiKey: sc.APIKey,
		client: &http.Client{Timeout: sc.parsedTimeout},
	}
}

func (s *APISource) Name() string { return s.name }

func (s *APISource) CacheKey(rec *URLRecord) string { return rec.Host }

type apiReply struct {
	QueryStatus string   `json:"query_status"`
	Threat      string   `json:"threat"`
	Tags        []string `json:"tags"`
}

func (s *APISource) Lookup(ctx context.Context, rec *URLRecord) (bool, string, error) {
	form := url.Values{"url": {rec.Raw}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.apiKey != "" {
		req.Header.Set("Auth-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("api lookup: unexpected status %d", resp.StatusCode)
	}

	var reply apiReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&reply); err != nil {
		return false, "", err
	}

	if reply.QueryStatus != "ok" {
		return false, "", nil
	}
	payload := reply.Threat
	if len(reply.Tags) > 0 {
		payload += " [" + strings.Join(reply.Tags, ",") + "]"
	}
	return true, payload, nil
}

// --- Local IOC Source ---
// Reads a local indicator file once at startup: one indicator per line,
// either a domain (matches the host and any subdomain of it) or a CIDR
// (matches IP-literal hosts, and resolved addresses via the shared ranger).

type LocalIOCSource struct {
	name    string
	domains *IOCTrie
	ranger  cidranger.Ranger
}

func NewLocalIOCSource(sc *IntelSourceConfig) (*LocalIOCSource, error) {
	f, err := os.Open(sc.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src := &LocalIOCSource{
		name:    sc.Name,
		domains: NewIOCTrie(),
	}

	scanner := bufio.NewScanner(f)
	cidrs := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.ContainsAny(line, "/") {
			_, network, err := net.ParseCIDR(line)
			if err != nil {
				LogWarn("[INTEL] IOC file '%s': skipping bad CIDR '%s'", sc.Path, line)
				continue
			}
			if src.ranger == nil {
				src.ranger = cidranger.NewPCTrieRanger()
			}
			if err := src.ranger.Insert(cidranger.NewBasicRangerEntry(*network)); err != nil {
				LogWarn("[INTEL] IOC file '%s': insert failed for '%s': %v", sc.Path, line, err)
				continue
			}
			cidrs++
			continue
		}
		src.domains.Insert(line, "domain IOC")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	LogInfo("[INTEL] IOC file '%s' loaded (%d domains, %d ranges)", sc.Path, src.domains.Len(), cidrs)
	return src, nil
}

func (s *LocalIOCSource) Name() string { return s.name }

func (s *LocalIOCSource) CacheKey(rec *URLRecord) string { return rec.Host }

func (s *LocalIOCSource) Lookup(_ context.Context, rec *URLRecord) (bool, string, error) {
	if rec.IsIP {
		if s.ranger != nil {
			if ip := net.ParseIP(rec.Host); ip != nil {
				if hit, err := s.ranger.Contains(ip); err == nil && hit {
					return true, "ip in IOC range", nil
				}
			}
		}
		return false, "", nil
	}

	if indicator, _, ok := s.domains.Match(rec.Host); ok {
		return true, "domain IOC: " + indicator, nil
	}
	return false, "", nil
}
