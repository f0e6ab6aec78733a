/*
File: classifier.go
Version: 1.4.0
Description: Ensemble classifier. Models are logistic scorers trained offline
             and shipped as JSON weight files; they are loaded once at startup
             and validated against the feature schema there, so a schema drift
             fails the process instead of silently skewing inference.
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

var ErrModelLoad = errors.New("model load failed")

// ClassificationResult is one model's opinion.
type ClassificationResult struct {
	ModelID     string
	Probability float64
}

// modelFile is the on-disk shape produced by the offline training pipeline.
type modelFile struct {
	ModelID       string             `json:"model_id"`
	SchemaVersion string             `json:"schema_version"`
	Bias          float64            `json:"bias"`
	Weights       map[string]float64 `json:"weights"`
	Means         map[string]float64 `json:"means"`
	Scales        map[string]float64 `json:"scales"`
}

// LogisticModel performs standardized logistic inference over the full
// feature vector. Coefficients are flattened into schema order at load so
// inference is allocation-free and summation order is fixed.
type LogisticModel struct {
	id      string
	bias    float64
	names   []string
	weights []float64
	means   []float64
	scales  []float64
}

func (m *LogisticModel) ID() string { return m.id }

func (m *LogisticModel) Predict(fv FeatureVector) ClassificationResult {
	z := m.bias
	for i, name := range m.names {
		x := fv[name]
		if m.scales[i] != 0 {
			x = (x - m.means[i]) / m.scales[i]
		}
		z += m.weights[i] * x
	}
	prob := 1.0 / (1.0 + math.Exp(-z))
	return ClassificationResult{ModelID: m.id, Probability: prob}
}

// Ensemble combines the loaded models under one combination strategy.
type Ensemble struct {
	models      []*LogisticModel
	combination string
	voteWeights map[string]float64
}

// LoadEnsemble reads every model path and validates each against the current
// feature schema. Any failure is fatal to the caller: the process must not
// serve requests without a usable, schema-consistent ensemble.
func LoadEnsemble(cfg ModelConfig) (*Ensemble, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("%w: no model paths configured", ErrModelLoad)
	}

	ens := &Ensemble{
		combination: cfg.Combination,
		voteWeights: cfg.Weights,
	}

	seen := make(map[string]struct{})
	for _, path := range cfg.Paths {
		m, err := loadModel(path)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[m.id]; dup {
			return nil, fmt.Errorf("%w: duplicate model_id '%s' (%s)", ErrModelLoad, m.id, path)
		}
		seen[m.id] = struct{}{}
		ens.models = append(ens.models, m)
		LogInfo("[ENSEMBLE] Loaded model '%s' (%d weights)", m.id, len(m.weights))
	}
	return ens, nil
}

func loadModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}
	if mf.ModelID == "" {
		return nil, fmt.Errorf("%w: %s: missing model_id", ErrModelLoad, path)
	}
	if mf.SchemaVersion != featureSchemaVersion {
		return nil, fmt.Errorf("%w: %s: schema version '%s' does not match engine '%s'",
			ErrModelLoad, path, mf.SchemaVersion, featureSchemaVersion)
	}

	// Exact schema match both ways. A model trained on a different feature
	// set is a deployment error and must fail here, not at inference time.
	schema := SchemaNames()
	if len(mf.Weights) != len(schema) {
		return nil, fmt.Errorf("%w: %s: model has %d features, schema has %d",
			ErrModelLoad, path, len(mf.Weights), len(schema))
	}
	var missing []string
	for _, name := range schema {
		if _, ok := mf.Weights[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s: model lacks schema features %v", ErrModelLoad, path, missing)
	}

	m := &LogisticModel{
		id:      mf.ModelID,
		bias:    mf.Bias,
		names:   schema,
		weights: make([]float64, len(schema)),
		means:   make([]float64, len(schema)),
		scales:  make([]float64, len(schema)),
	}
	for i, name := range schema {
		m.weights[i] = mf.Weights[name]
		m.means[i] = mf.Means[name]
		m.scales[i] = mf.Scales[name]
	}
	return m, nil
}

// Classify runs every model and combines the probabilities.
func (e *Ensemble) Classify(fv FeatureVector) (float64, []ClassificationResult) {
	results := make([]ClassificationResult, 0, len(e.models))
	for _, m := range e.models {
		results = append(results, m.Predict(fv))
	}
	return Combine(e.combination, results, e.voteWeights), results
}

// Combine applies the configured combination strategy. Each strategy is a
// pure function over the result set; ties break toward the higher score.
func Combine(strategy string, results []ClassificationResult, weights map[string]float64) float64 {
	if len(results) == 0 {
		return 0
	}

	switch strategy {
	case "weighted_vote":
		var sum, totalWeight float64
		for _, r := range results {
			w, ok := weights[r.ModelID]
			if !ok || w <= 0 {
				w = 1
			}
			sum += r.Probability * w
			totalWeight += w
		}
		return sum / totalWeight

	case "max_confidence":
		// The most decisive model wins: farthest from 0.5, higher on ties.
		best := results[0].Probability
		for _, r := range results[1:] {
			db, dr := math.Abs(best-0.5), math.Abs(r.Probability-0.5)
			if dr > db || (dr == db && r.Probability > best) {
				best = r.Probability
			}
		}
		return best

	default: // "mean"
		var sum float64
		for _, r := range results {
			sum += r.Probability
		}
		return sum / float64(len(results))
	}
}
