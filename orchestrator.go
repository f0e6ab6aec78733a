/*
File: orchestrator.go
Version: 1.6.0
Description: Assessment orchestrator. Runs the full pipeline for one URL
             (normalize, extract, correlate, classify, aggregate) under a
             per-request deadline, and fans batches out over a bounded worker
             pool with order-preserving results.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Detector owns the assessment pipeline. Construct once, share freely; all
// methods are safe for concurrent use.
type Detector struct {
	cfg        *Config
	lexical    *LexicalExtractor
	extractors []Extractor // deadline-bound I/O extractors
	correlator *Correlator
	ensemble   *Ensemble
	aggregator *Aggregator
}

// NewDetector wires the pipeline from configuration. Model loading happens
// here and any failure is returned as-is so the caller can treat it as fatal.
func NewDetector(cfg *Config) (*Detector, error) {
	ensemble, err := LoadEnsemble(cfg.Model)
	if err != nil {
		return nil, err
	}

	sources, ranger, err := BuildIntelSources(cfg.ThreatIntel)
	if err != nil {
		return nil, fmt.Errorf("threat intel setup: %w", err)
	}

	d := &Detector{
		cfg:        cfg,
		lexical:    NewLexicalExtractor(),
		correlator: NewCorrelator(cfg.ThreatIntel, sources),
		ensemble:   ensemble,
		aggregator: NewAggregator(cfg.Risk),
	}

	if cfg.Features.Host.enabled {
		d.extractors = append(d.extractors, NewHostExtractor(cfg.Features.Host))
	}
	if cfg.Features.Network.enabled {
		d.extractors = append(d.extractors, NewNetworkExtractor(cfg.Features.Network, ranger))
	}
	if cfg.Features.Content.Enabled {
		d.extractors = append(d.extractors, NewContentExtractor(cfg.Features.Content))
	}

	LogInfo("[DETECTOR] Pipeline ready: %d models, %d intel sources, %d I/O extractors",
		len(ensemble.models), len(sources), len(d.extractors))
	return d, nil
}

// assessOptions carries per-request overrides of the process-wide defaults.
type assessOptions struct {
	includeNetwork bool
	deadline       time.Duration
}

// AssessOption adjusts a single assessment without touching configuration.
type AssessOption func(*assessOptions)

// WithNetworkProbes controls whether the network category runs for this
// request. It can only narrow the configured capability: a detector whose
// configuration disables network extraction never runs it.
func WithNetworkProbes(include bool) AssessOption {
	return func(o *assessOptions) { o.includeNetwork = include }
}

// WithDeadline overrides the configured per-request budget.
func WithDeadline(deadline time.Duration) AssessOption {
	return func(o *assessOptions) { o.deadline = deadline }
}

// Assess runs the full pipeline for one URL. The only hard failure is a
// malformed URL; every I/O problem past normalization degrades to imputed
// features and a verdict that names the missing categories.
func (d *Detector) Assess(ctx context.Context, rawURL string, opts ...AssessOption) (*RiskVerdict, error) {
	start := time.Now()

	o := assessOptions{includeNetwork: true}
	for _, opt := range opts {
		opt(&o)
	}
	deadline := d.cfg.Assessment.parsedDeadline
	if o.deadline > 0 {
		deadline = o.deadline
	}

	rec, err := NormalizeURL(rawURL, d.cfg.Assessment.MaxURLLength)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	fv := NewFeatureVector()

	// Lexical extraction is pure computation; run it inline before any I/O
	// so even a fully-degraded assessment has real features to score.
	if pf, err := d.lexical.Extract(ctx, rec); err == nil {
		fv.MergePartial(CategoryLexical, pf)
	}

	var mu sync.Mutex
	var intel ThreatIntelResult

	g, gctx := errgroup.WithContext(ctx)
	for _, ex := range d.activeExtractors(&o) {
		ex := ex
		g.Go(func() error {
			pf, err := ex.Extract(gctx, rec)
			if err != nil {
				LogDebug("[DETECTOR] %s extractor degraded for %s: %v", ex.Name(), rec.Host, err)
				return nil
			}
			mu.Lock()
			fv.MergePartial(ex.Category(), pf)
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		res := d.correlator.Check(gctx, rec)
		mu.Lock()
		intel = res
		mu.Unlock()
		return nil
	})
	// Extractors report degradation via the vector, never via error, so this
	// cannot fail; Wait is just the join point.
	_ = g.Wait()

	score, results := d.ensemble.Classify(fv)
	verdict := d.aggregator.Aggregate(rec, fv, score, results, intel)

	if IsDebugEnabled() {
		LogDebug("[DETECTOR] %s -> %s (%.4f) in %v, unavailable=%v",
			rec.Host, verdict.RiskLevel, verdict.RiskScore, time.Since(start).Round(time.Millisecond), verdict.UnavailableCategories)
	}
	return verdict, nil
}

// activeExtractors applies the per-request option filter to the configured
// extractor set.
func (d *Detector) activeExtractors(o *assessOptions) []Extractor {
	if o.includeNetwork {
		return d.extractors
	}
	out := make([]Extractor, 0, len(d.extractors))
	for _, ex := range d.extractors {
		if ex.Category() == CategoryNetwork {
			continue
		}
		out = append(out, ex)
	}
	return out
}

// BatchResult pairs one input slot with its verdict or error.
type BatchResult struct {
	Verdict *RiskVerdict `json:"verdict,omitempty"`
	Err     error        `json:"-"`
}

// AssessMany assesses a batch over a bounded worker pool. The result slice
// always has the same length and order as the input; a bad URL fails only
// its own slot.
func (d *Detector) AssessMany(ctx context.Context, urls []string, opts ...AssessOption) []BatchResult {
	results := make([]BatchResult, len(urls))
	if len(urls) == 0 {
		return results
	}

	workers := d.cfg.Assessment.BatchWorkers
	if workers > len(urls) {
		workers = len(urls)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				v, err := d.Assess(ctx, urls[i], opts...)
				results[i] = BatchResult{Verdict: v, Err: err}
			}
		}()
	}

	for i := range urls {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Mark every unscheduled slot instead of blocking forever.
			for j := i; j < len(urls); j++ {
				results[j] = BatchResult{Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return results
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// FlushIntelCache drops every cached intel entry. Exposed for operational
// use when a source publishes corrections.
func (d *Detector) FlushIntelCache() {
	d.correlator.cache.Flush()
}

// IsMalformed reports whether an assessment error was caused by input
// rather than by the pipeline.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedURL)
}
