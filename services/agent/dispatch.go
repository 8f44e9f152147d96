// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jedam19899/loan-fairness-service/services/explain"
	"github.com/jedam19899/loan-fairness-service/services/fairness"
	"github.com/jedam19899/loan-fairness-service/services/record"
)

// RecordStore is the slice of the record store the dispatcher routes
// to. *record.Store satisfies it.
type RecordStore interface {
	fairness.GroupCounts
	InsertIfAbsent(ctx context.Context, applicationID string, features map[string]any) (bool, error)
}

// Explainer produces contribution maps. *explain.Engine satisfies it.
type Explainer interface {
	Explain(ctx context.Context, applicationID string) (map[string]float64, error)
}

// Dispatcher routes an operation name plus argument payload to the
// fairness, explanation, or record component.
//
// The dispatcher itself is stateless; side effects are confined to the
// routed component, so it is safe to invoke concurrently.
type Dispatcher struct {
	registry  *Registry
	store     RecordStore
	explainer Explainer
	validate  *validator.Validate
}

// NewDispatcher wires the dispatcher to its routed components.
func NewDispatcher(registry *Registry, store RecordStore, explainer Explainer) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		store:     store,
		explainer: explainer,
		validate:  validator.New(),
	}
}

// Dispatch executes one operation.
//
// Domain failures (NotFound, Unavailable, DataCorrupt, InvalidArguments)
// are recovered into the returned Result so the orchestrator can still
// run a follow-up round explaining them. An unknown operation name, or
// an infrastructure fault in a routed component, is returned as an
// error and is fatal to the current request.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	if _, ok := d.registry.Lookup(name); !ok {
		toolDispatchesTotal.WithLabelValues(name, "unknown").Inc()
		return nil, Errorf(KindUnknownOperation, "unknown operation %q", name)
	}

	result, err := d.route(ctx, name, args)
	if err != nil {
		toolDispatchesTotal.WithLabelValues(name, "fault").Inc()
		return nil, err
	}
	toolDispatchesTotal.WithLabelValues(name, result.Status).Inc()
	return result, nil
}

func (d *Dispatcher) route(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	switch name {
	case OpIngestApplication:
		var a IngestArgs
		if result := d.decode(args, &a); result != nil {
			return result, nil
		}
		return d.ingest(ctx, a)

	case OpDisparateImpact:
		var a DisparateImpactArgs
		if result := d.decode(args, &a); result != nil {
			return result, nil
		}
		return d.disparateImpact(ctx, a)

	case OpExplainApplication:
		var a ExplainArgs
		if result := d.decode(args, &a); result != nil {
			return result, nil
		}
		return d.explainApplication(ctx, a)

	default:
		// Unreachable: Dispatch checked the registry.
		return nil, Errorf(KindUnknownOperation, "unknown operation %q", name)
	}
}

// decode unmarshals and validates the argument payload against the
// operation's typed struct. Returns a recovered InvalidArguments result
// on failure, nil on success.
func (d *Dispatcher) decode(args json.RawMessage, into any) *Result {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, into); err != nil {
		return failureResult(KindInvalidArguments, "arguments do not match the operation schema: %v", err)
	}
	if err := d.validate.Struct(into); err != nil {
		return failureResult(KindInvalidArguments, "missing required arguments: %v", err)
	}
	return nil
}

func (d *Dispatcher) ingest(ctx context.Context, a IngestArgs) (*Result, error) {
	// Duplicate IDs are a no-op by contract; the caller always sees
	// success.
	if _, err := d.store.InsertIfAbsent(ctx, a.ApplicationID, a.Features); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", a.ApplicationID, err)
	}
	return successResult(map[string]any{"status": "success"}), nil
}

func (d *Dispatcher) disparateImpact(ctx context.Context, a DisparateImpactArgs) (*Result, error) {
	ratio, err := fairness.DisparateImpact(ctx, d.store, a.Privileged, a.Unprivileged)
	if err != nil {
		return nil, fmt.Errorf("disparate impact %q/%q: %w", a.Privileged, a.Unprivileged, err)
	}
	return successResult(map[string]any{"ratio": ratio}), nil
}

func (d *Dispatcher) explainApplication(ctx context.Context, a ExplainArgs) (*Result, error) {
	contributions, err := d.explainer.Explain(ctx, a.ApplicationID)
	switch {
	case err == nil:
		return successResult(map[string]any{"contributions": contributions}), nil
	case errors.Is(err, explain.ErrUnavailable):
		return failureResult(KindUnavailable, "explanation service unavailable"), nil
	case errors.Is(err, record.ErrNotFound):
		return failureResult(KindNotFound, "application %s not found", a.ApplicationID), nil
	case errors.Is(err, record.ErrCorrupt):
		return failureResult(KindDataCorrupt, "stored features for %s are unreadable", a.ApplicationID), nil
	default:
		return nil, fmt.Errorf("explain %s: %w", a.ApplicationID, err)
	}
}
