// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// AttributionModel computes a per-feature contribution vector for one
// feature vector. Implementations must be safe for concurrent use.
type AttributionModel interface {
	// Attribute returns one contribution score per input feature,
	// preserving input positions. The returned slice has the same
	// length as x.
	Attribute(ctx context.Context, x []float64) ([]float64, error)
}

// modelArtifact is the JSON shape of the trained model artifact.
//
// FeatureOrder is fixed at training time; the weights are positional
// against it.
type modelArtifact struct {
	FeatureOrder []string  `json:"feature_order"`
	Weights      []float64 `json:"weights"`
	Intercept    float64   `json:"intercept"`
}

// LinearModel attributes each feature its weighted input value. It
// stands in for the trained classifier's attribution engine behind the
// AttributionModel interface.
type LinearModel struct {
	order   []string
	weights []float64
}

// LoadModel reads a model artifact from disk.
//
// Returns the model together with its training-time feature order. An
// os.ErrNotExist from the path is the caller's signal to run with the
// explain path disabled.
func LoadModel(path string) (*LinearModel, []string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var artifact modelArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}
	if len(artifact.FeatureOrder) == 0 {
		return nil, nil, fmt.Errorf("model artifact %s has no feature order", path)
	}
	if len(artifact.Weights) != len(artifact.FeatureOrder) {
		return nil, nil, fmt.Errorf("model artifact %s has %d weights for %d features",
			path, len(artifact.Weights), len(artifact.FeatureOrder))
	}

	model := &LinearModel{
		order:   artifact.FeatureOrder,
		weights: artifact.Weights,
	}
	return model, artifact.FeatureOrder, nil
}

// Attribute implements AttributionModel.
func (m *LinearModel) Attribute(ctx context.Context, x []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(x) != len(m.weights) {
		return nil, fmt.Errorf("feature vector has %d values, model expects %d",
			len(x), len(m.weights))
	}

	contributions := make([]float64, len(x))
	for i, v := range x {
		contributions[i] = m.weights[i] * v
	}
	return contributions, nil
}
