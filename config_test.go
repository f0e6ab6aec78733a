/*
File: config_test.go
Description: Tests for configuration defaults and risk band validation.
*/

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 15*time.Second, cfg.Assessment.parsedDeadline)
	assert.Equal(t, 2048, cfg.Assessment.MaxURLLength)
	assert.Equal(t, 8, cfg.Assessment.BatchWorkers)
	assert.Equal(t, 16384, cfg.ThreatIntel.CacheSize)
	assert.Equal(t, "mean", cfg.Model.Combination)
	assert.Equal(t, 0.9, cfg.Risk.IntelFloor)
	assert.Len(t, cfg.Risk.Bands, 4)

	assert.True(t, cfg.Features.Host.enabled, "host features are on unless explicitly disabled")
	assert.True(t, cfg.Features.Network.enabled, "network features are on unless explicitly disabled")
	assert.False(t, cfg.Features.Content.Enabled, "content fetching stays opt-in")
}

func TestFeatureCategoryToggles(t *testing.T) {
	yaml := `
features:
  host:
    enabled: false
  network:
    enabled: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Features.Host.enabled)
	assert.True(t, cfg.Features.Network.enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	yaml := `
assessment:
  deadline: 5s
  batch_workers: 4
model:
  combination: weighted_vote
threat_intel:
  sources:
    - name: feed-a
      type: feed
      url: https://feeds.test/urls.txt
      ttl: 30m
      qps: 2
risk:
  intel_floor: 0.85
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Assessment.parsedDeadline)
	assert.Equal(t, 4, cfg.Assessment.BatchWorkers)
	assert.Equal(t, "weighted_vote", cfg.Model.Combination)
	assert.Equal(t, 0.85, cfg.Risk.IntelFloor)

	require.Len(t, cfg.ThreatIntel.Sources, 1)
	src := cfg.ThreatIntel.Sources[0]
	assert.Equal(t, 30*time.Minute, src.parsedTTL)
	assert.Equal(t, 2.0, src.QPS)
	assert.Equal(t, 10, src.Burst, "burst falls back to default")
}

func TestLoadConfigRejectsUnknownCombination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  combination: majority\n"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsNamelessSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threat_intel:\n  sources:\n    - type: feed\n"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateBands(t *testing.T) {
	ok := []RiskBand{
		{Level: "SAFE", Min: 0, Max: 0.5},
		{Level: "BAD", Min: 0.5, Max: 1},
	}
	assert.NoError(t, validateBands(ok))

	gap := []RiskBand{
		{Level: "SAFE", Min: 0, Max: 0.4},
		{Level: "BAD", Min: 0.5, Max: 1},
	}
	assert.Error(t, validateBands(gap), "gaps are rejected")

	overlap := []RiskBand{
		{Level: "SAFE", Min: 0, Max: 0.6},
		{Level: "BAD", Min: 0.5, Max: 1},
	}
	assert.Error(t, validateBands(overlap), "overlaps are rejected")

	short := []RiskBand{
		{Level: "SAFE", Min: 0, Max: 0.9},
	}
	assert.Error(t, validateBands(short), "the table must reach 1.0")

	offset := []RiskBand{
		{Level: "SAFE", Min: 0.1, Max: 1},
	}
	assert.Error(t, validateBands(offset), "the table must start at 0")
}
