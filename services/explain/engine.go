// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package explain produces per-feature attribution explanations for
// stored loan applications.
//
// The engine projects a stored feature map onto the model's fixed
// training-time feature order, forwards the resulting vector to the
// attribution model, and converts the score vector back into a map
// keyed by feature name. Attribution is potentially CPU-bound, so calls
// pass through a shared bounded worker gate.
package explain

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// ErrUnavailable indicates no attribution model is loaded. It is
// distinct from record.ErrNotFound so the transport layer can map the
// two conditions to different statuses.
var ErrUnavailable = errors.New("explanation service unavailable")

// FeatureSource is the read-only view of the record store the engine
// needs. *record.Store satisfies it.
type FeatureSource interface {
	GetFeatures(ctx context.Context, applicationID string) (map[string]any, error)
}

// Engine computes explanations for stored applications.
//
// A nil model is an explicit "unavailable" state: the engine is still
// constructed so the rest of the system starts, but Explain fails with
// ErrUnavailable. The dependency is fixed at construction time.
type Engine struct {
	source FeatureSource
	model  AttributionModel
	order  []string
	gate   *semaphore.Weighted
}

// NewEngine builds an engine over the given feature source.
//
// model may be nil when no artifact was found at startup. gate bounds
// concurrent attribution calls and may be shared with other CPU-bound
// callers; a nil gate disables bounding (tests).
func NewEngine(source FeatureSource, model AttributionModel, featureOrder []string, gate *semaphore.Weighted) *Engine {
	return &Engine{
		source: source,
		model:  model,
		order:  featureOrder,
		gate:   gate,
	}
}

// Available reports whether an attribution model is loaded.
func (e *Engine) Available() bool {
	return e.model != nil
}

// FeatureOrder returns the training-time feature order.
func (e *Engine) FeatureOrder() []string {
	return e.order
}

// Explain returns the contribution map for one application.
//
// Failure modes, in check order:
//   - ErrUnavailable when no model is loaded
//   - record.ErrNotFound when the application does not exist
//   - record.ErrCorrupt when the stored payload cannot be parsed
//
// On success the map has exactly one entry per feature-order element;
// feature keys missing from the stored map are zero-filled silently.
func (e *Engine) Explain(ctx context.Context, applicationID string) (map[string]float64, error) {
	if e.model == nil {
		return nil, ErrUnavailable
	}

	features, err := e.source.GetFeatures(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("load features for %s: %w", applicationID, err)
	}

	x := e.project(features)

	if e.gate != nil {
		if err := e.gate.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer e.gate.Release(1)
	}

	scores, err := e.model.Attribute(ctx, x)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", applicationID, err)
	}
	if len(scores) != len(e.order) {
		return nil, fmt.Errorf("model returned %d scores for %d features", len(scores), len(e.order))
	}

	contributions := make(map[string]float64, len(e.order))
	for i, name := range e.order {
		contributions[name] = scores[i]
	}
	return contributions, nil
}

// project builds the ordered feature vector, substituting 0 for missing
// or non-numeric values.
func (e *Engine) project(features map[string]any) []float64 {
	x := make([]float64, len(e.order))
	for i, name := range e.order {
		if v, ok := features[name].(float64); ok {
			x[i] = v
		}
	}
	return x
}
