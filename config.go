/*
File: config.go
Version: 1.4.0
Description: Configuration structures and loading for the assessment engine.
             Defaults are filled in LoadConfig so the rest of the code never
             has to guard against zero values.
*/

package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// --- Configuration Structures ---

type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Assessment  AssessmentConfig  `yaml:"assessment"`
	Features    FeaturesConfig    `yaml:"features"`
	ThreatIntel ThreatIntelConfig `yaml:"threat_intel"`
	Model       ModelConfig       `yaml:"model"`
	Risk        RiskConfig        `yaml:"risk"`
}

type LoggingConfig struct {
	Level   string   `yaml:"level"`
	Format  string   `yaml:"format"`
	Outputs []string `yaml:"outputs"`

	File struct {
		Path        string `yaml:"path"`
		Permissions uint32 `yaml:"permissions"`
	} `yaml:"file"`
}

type AssessmentConfig struct {
	Deadline     string `yaml:"deadline"`       // Overall per-request budget
	MaxURLLength int    `yaml:"max_url_length"` // Normalizer rejects anything longer
	BatchWorkers int    `yaml:"batch_workers"`  // Bounded pool for AssessMany

	parsedDeadline time.Duration
}

type FeaturesConfig struct {
	Host    HostFeaturesConfig    `yaml:"host"`
	Network NetworkFeaturesConfig `yaml:"network"`
	Content ContentFeaturesConfig `yaml:"content"`
}

type HostFeaturesConfig struct {
	Enabled      *bool  `yaml:"enabled"` // nil = enabled; host features are a core category
	WhoisTimeout string `yaml:"whois_timeout"`
	DNSTimeout   string `yaml:"dns_timeout"`
	TLSTimeout   string `yaml:"tls_timeout"`
	DNSServer    string `yaml:"dns_server"` // host:port, empty = system default

	enabled            bool
	parsedWhoisTimeout time.Duration
	parsedDNSTimeout   time.Duration
	parsedTLSTimeout   time.Duration
}

type NetworkFeaturesConfig struct {
	Enabled        *bool  `yaml:"enabled"` // nil = enabled; network features are a core category
	RequestTimeout string `yaml:"request_timeout"`
	MaxRedirects   int    `yaml:"max_redirects"`

	enabled              bool
	parsedRequestTimeout time.Duration
}

type ContentFeaturesConfig struct {
	Enabled      bool   `yaml:"enabled"`
	FetchTimeout string `yaml:"fetch_timeout"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`

	parsedFetchTimeout time.Duration
}

type ThreatIntelConfig struct {
	CacheSize int                 `yaml:"cache_size"`
	Sources   []IntelSourceConfig `yaml:"sources"`
}

type IntelSourceConfig struct {
	Name    string  `yaml:"name"`
	Type    string  `yaml:"type"` // "feed", "api", "iocfile"
	URL     string  `yaml:"url"`
	Path    string  `yaml:"path"`
	APIKey  string  `yaml:"api_key"`
	Timeout string  `yaml:"timeout"`
	TTL     string  `yaml:"ttl"`
	QPS     float64 `yaml:"qps"`
	Burst   int     `yaml:"burst"`

	parsedTimeout time.Duration
	parsedTTL     time.Duration
}

type ModelConfig struct {
	Paths       []string           `yaml:"paths"`
	Combination string             `yaml:"combination"` // "mean", "weighted_vote", "max_confidence"
	Weights     map[string]float64 `yaml:"weights"`     // model_id -> weight (weighted_vote only)
}

type RiskConfig struct {
	IntelFloor float64    `yaml:"intel_floor"` // Floor applied when any intel source matches
	Bands      []RiskBand `yaml:"bands"`
}

type RiskBand struct {
	Level string  `yaml:"level"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
}

// --- Loading ---

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a fully-defaulted configuration without reading a file.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if len(cfg.Logging.Outputs) == 0 {
		cfg.Logging.Outputs = []string{"console"}
	}

	if cfg.Assessment.Deadline == "" {
		cfg.Assessment.Deadline = "15s"
	}
	cfg.Assessment.parsedDeadline = parseDurationOr(cfg.Assessment.Deadline, 15*time.Second, "assessment.deadline")
	if cfg.Assessment.MaxURLLength <= 0 {
		cfg.Assessment.MaxURLLength = 2048
	}
	if cfg.Assessment.BatchWorkers <= 0 {
		cfg.Assessment.BatchWorkers = 8
	}

	h := &cfg.Features.Host
	h.enabled = h.Enabled == nil || *h.Enabled
	h.parsedWhoisTimeout = parseDurationOr(h.WhoisTimeout, 5*time.Second, "features.host.whois_timeout")
	h.parsedDNSTimeout = parseDurationOr(h.DNSTimeout, 3*time.Second, "features.host.dns_timeout")
	h.parsedTLSTimeout = parseDurationOr(h.TLSTimeout, 5*time.Second, "features.host.tls_timeout")

	n := &cfg.Features.Network
	n.enabled = n.Enabled == nil || *n.Enabled
	n.parsedRequestTimeout = parseDurationOr(n.RequestTimeout, 10*time.Second, "features.network.request_timeout")
	if n.MaxRedirects <= 0 {
		n.MaxRedirects = 5
	}

	c := &cfg.Features.Content
	c.parsedFetchTimeout = parseDurationOr(c.FetchTimeout, 10*time.Second, "features.content.fetch_timeout")
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 512 * 1024
	}

	if cfg.ThreatIntel.CacheSize <= 0 {
		cfg.ThreatIntel.CacheSize = 16384
	}
	for i := range cfg.ThreatIntel.Sources {
		s := &cfg.ThreatIntel.Sources[i]
		if s.Name == "" {
			return fmt.Errorf("threat_intel.sources[%d]: name is required", i)
		}
		s.parsedTimeout = parseDurationOr(s.Timeout, 10*time.Second, "threat_intel.timeout")
		s.parsedTTL = parseDurationOr(s.TTL, 1*time.Hour, "threat_intel.ttl")
		if s.QPS <= 0 {
			s.QPS = 5
		}
		if s.Burst <= 0 {
			s.Burst = 10
		}
	}

	if cfg.Model.Combination == "" {
		cfg.Model.Combination = "mean"
	}
	switch cfg.Model.Combination {
	case "mean", "weighted_vote", "max_confidence":
	default:
		return fmt.Errorf("model.combination: unknown strategy '%s'", cfg.Model.Combination)
	}

	if cfg.Risk.IntelFloor <= 0 {
		cfg.Risk.IntelFloor = 0.9
	}
	if len(cfg.Risk.Bands) == 0 {
		cfg.Risk.Bands = []RiskBand{
			{Level: "SAFE", Min: 0.0, Max: 0.3},
			{Level: "LOW", Min: 0.3, Max: 0.5},
			{Level: "MEDIUM", Min: 0.5, Max: 0.8},
			{Level: "HIGH", Min: 0.8, Max: 1.0},
		}
	}
	if err := validateBands(cfg.Risk.Bands); err != nil {
		return err
	}
	return nil
}

// validateBands ensures the band table partitions [0,1] without gaps or overlap.
func validateBands(bands []RiskBand) error {
	sorted := make([]RiskBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	if sorted[0].Min != 0 {
		return fmt.Errorf("risk.bands: first band must start at 0, got %.2f", sorted[0].Min)
	}
	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i].Max != sorted[i+1].Min {
			return fmt.Errorf("risk.bands: gap or overlap between '%s' and '%s'", sorted[i].Level, sorted[i+1].Level)
		}
	}
	if sorted[len(sorted)-1].Max != 1.0 {
		return fmt.Errorf("risk.bands: last band must end at 1.0, got %.2f", sorted[len(sorted)-1].Max)
	}
	return nil
}

func parseDurationOr(s string, fallback time.Duration, field string) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		LogWarn("[CONFIG] Invalid %s '%s', defaulting to %v", field, s, fallback)
		return fallback
	}
	return d
}
