/*
File: classifier_test.go
Description: Tests for model loading, schema validation, and combination
             strategies.
*/

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestModel writes a schema-complete model file with the given weight
// overrides; every other weight is zero and no standardization is applied.
func writeTestModel(t *testing.T, id string, bias float64, overrides map[string]float64) string {
	t.Helper()

	weights := make(map[string]float64, len(SchemaNames()))
	for _, name := range SchemaNames() {
		weights[name] = 0
	}
	for name, w := range overrides {
		if _, ok := weights[name]; !ok {
			t.Fatalf("override '%s' is not a schema feature", name)
		}
		weights[name] = w
	}

	data, err := json.Marshal(map[string]interface{}{
		"model_id":       id,
		"schema_version": featureSchemaVersion,
		"bias":           bias,
		"weights":        weights,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), id+".json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestLoadEnsembleAndPredict(t *testing.T) {
	path := writeTestModel(t, "m1", -2.0, map[string]float64{"pattern_is_ip_host": 4.0})
	ens, err := LoadEnsemble(ModelConfig{Paths: []string{path}, Combination: "mean"})
	require.NoError(t, err)

	fv := NewFeatureVector()
	low, _ := ens.Classify(fv)
	assert.Less(t, low, 0.5, "bias -2 with zero features must score below 0.5")

	fv["pattern_is_ip_host"] = 1
	high, results := ens.Classify(fv)
	assert.Greater(t, high, low)
	assert.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ModelID)
}

func TestLoadEnsembleRejectsMissingFile(t *testing.T) {
	_, err := LoadEnsemble(ModelConfig{Paths: []string{"/nonexistent/model.json"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelLoad)
}

func TestLoadEnsembleRejectsNoPaths(t *testing.T) {
	_, err := LoadEnsemble(ModelConfig{})
	assert.ErrorIs(t, err, ErrModelLoad)
}

func TestLoadEnsembleRejectsSchemaMismatch(t *testing.T) {
	weights := make(map[string]float64)
	for _, name := range SchemaNames() {
		weights[name] = 0
	}
	delete(weights, "lexical_url_length")
	weights["bogus_feature"] = 1 // keep the count equal, names wrong

	data, err := json.Marshal(map[string]interface{}{
		"model_id":       "drifted",
		"schema_version": featureSchemaVersion,
		"weights":        weights,
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "drifted.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = LoadEnsemble(ModelConfig{Paths: []string{path}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.Contains(t, err.Error(), "lexical_url_length")
}

func TestLoadEnsembleRejectsWrongVersion(t *testing.T) {
	weights := make(map[string]float64)
	for _, name := range SchemaNames() {
		weights[name] = 0
	}
	data, err := json.Marshal(map[string]interface{}{
		"model_id":       "old",
		"schema_version": "v0",
		"weights":        weights,
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "old.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = LoadEnsemble(ModelConfig{Paths: []string{path}})
	assert.ErrorIs(t, err, ErrModelLoad)
}

func TestLoadEnsembleRejectsDuplicateIDs(t *testing.T) {
	a := writeTestModel(t, "same", 0, nil)
	b := writeTestModel(t, "same", 0, nil)
	_, err := LoadEnsemble(ModelConfig{Paths: []string{a, b}})
	assert.ErrorIs(t, err, ErrModelLoad)
}

func TestCombineMean(t *testing.T) {
	results := []ClassificationResult{
		{ModelID: "a", Probability: 0.2},
		{ModelID: "b", Probability: 0.8},
	}
	assert.InDelta(t, 0.5, Combine("mean", results, nil), 1e-9)
}

func TestCombineWeightedVote(t *testing.T) {
	results := []ClassificationResult{
		{ModelID: "a", Probability: 0.0},
		{ModelID: "b", Probability: 1.0},
	}
	weights := map[string]float64{"a": 1, "b": 3}
	assert.InDelta(t, 0.75, Combine("weighted_vote", results, weights), 1e-9)

	// Unknown model ids fall back to weight 1
	assert.InDelta(t, 0.5, Combine("weighted_vote", results, nil), 1e-9)
}

func TestCombineMaxConfidence(t *testing.T) {
	results := []ClassificationResult{
		{ModelID: "a", Probability: 0.6},
		{ModelID: "b", Probability: 0.05},
		{ModelID: "c", Probability: 0.55},
	}
	assert.InDelta(t, 0.05, Combine("max_confidence", results, nil), 1e-9,
		"most decisive model wins regardless of direction")

	tied := []ClassificationResult{
		{ModelID: "a", Probability: 0.3},
		{ModelID: "b", Probability: 0.7},
	}
	assert.InDelta(t, 0.7, Combine("max_confidence", tied, nil), 1e-9,
		"equal distance from 0.5 resolves toward the higher score")
}

func TestCombineEmpty(t *testing.T) {
	assert.Zero(t, Combine("mean", nil, nil))
}
