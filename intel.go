/*
File: intel.go
Version: 1.3.0
Description: Threat-intel correlator. Queries every configured source
             concurrently with per-source timeouts, rate limits, singleflight
             coalescing and TTL caching. Source failures degrade to "no match"
             and are never cached, so a transient outage self-heals on the
             next request.
*/

package main

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IntelSource is the adapter contract for one external reputation source.
// Rate limiting and timeouts are owned by the correlator; adapters only
// perform the lookup.
type IntelSource interface {
	Name() string
	// CacheKey picks the cache granularity: host for domain-reputation
	// sources, a URL digest for exact-URL feeds.
	CacheKey(rec *URLRecord) string
	Lookup(ctx context.Context, rec *URLRecord) (matched bool, payload string, err error)
}

// ThreatIntelResult is the aggregate of all source checks for one request.
// Cached per-source entries are single-source instances of the same shape.
type ThreatIntelResult struct {
	Sources   []string          `json:"sources"`
	Payloads  map[string]string `json:"payloads,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

func (r *ThreatIntelResult) Matched() bool { return len(r.Sources) > 0 }

type sourceState struct {
	source  IntelSource
	timeout time.Duration
	ttl     time.Duration
	limiter *rate.Limiter
}

type Correlator struct {
	states []sourceState
	cache  *IntelCache
	flight *ShardedGroup
}

func NewCorrelator(cfg ThreatIntelConfig, sources []IntelSource) *Correlator {
	c := &Correlator{
		cache:  NewIntelCache(cfg.CacheSize),
		flight: NewShardedGroup(),
	}

	byName := make(map[string]*IntelSourceConfig, len(cfg.Sources))
	for i := range cfg.Sources {
		byName[cfg.Sources[i].Name] = &cfg.Sources[i]
	}

	for _, src := range sources {
		sc, ok := byName[src.Name()]
		if !ok {
			LogWarn("[INTEL] Source '%s' has no configuration, skipping", src.Name())
			continue
		}
		c.states = append(c.states, sourceState{
			source:  src,
			timeout: sc.parsedTimeout,
			ttl:     sc.parsedTTL,
			limiter: rate.NewLimiter(rate.Limit(sc.QPS), sc.Burst),
		})
	}
	return c
}

// Check fans out to every source concurrently. Total latency is bounded by
// the slowest single source, not the sum.
func (c *Correlator) Check(ctx context.Context, rec *URLRecord) ThreatIntelResult {
	agg := ThreatIntelResult{FetchedAt: time.Now()}
	if len(c.states) == 0 {
		return agg
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := range c.states {
		st := &c.states[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.checkSource(ctx, st, rec)
			if res.Matched() {
				mu.Lock()
				agg.Sources = append(agg.Sources, res.Sources...)
				if agg.Payloads == nil {
					agg.Payloads = make(map[string]string)
				}
				for k, v := range res.Payloads {
					agg.Payloads[k] = v
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return agg
}

func (c *Correlator) checkSource(ctx context.Context, st *sourceState, rec *URLRecord) ThreatIntelResult {
	name := st.source.Name()
	key := name + "|" + st.source.CacheKey(rec)

	if res, ok := c.cache.Get(key); ok {
		if IsDebugEnabled() {
			LogDebug("[INTEL] Cache hit: %s (matched=%v)", key, res.Matched())
		}
		return res
	}

	v, _, _ := c.flight.Do(key, func() (interface{}, error) {
		// Double-check after winning the flight
		if res, ok := c.cache.Get(key); ok {
			return res, nil
		}

		// The winner's result is shared with every coalesced caller, so the
		// lookup must not die with the winner's own deadline. Detach from
		// the caller's cancellation; the per-source timeout is the bound.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), st.timeout)
		defer cancel()

		if err := st.limiter.Wait(sctx); err != nil {
			LogDebug("[INTEL] %s rate limit wait aborted: %v", name, err)
			return ThreatIntelResult{FetchedAt: time.Now()}, nil
		}

		matched, payload, err := st.source.Lookup(sctx, rec)
		if err != nil {
			// Failure is "no match" for this request only; do not cache,
			// so the source is retried as soon as it recovers.
			LogDebug("[INTEL] %s lookup failed for %s: %v", name, rec.Host, err)
			return ThreatIntelResult{FetchedAt: time.Now()}, nil
		}

		res := ThreatIntelResult{FetchedAt: time.Now()}
		if matched {
			res.Sources = []string{name}
			res.Payloads = map[string]string{name: payload}
		}
		c.cache.Add(key, res, st.ttl)
		return res, nil
	})

	return v.(ThreatIntelResult)
}
