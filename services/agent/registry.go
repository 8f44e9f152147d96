// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent implements the tool-dispatch agent: the closed
// operation registry presented to the language model, the dispatcher
// that executes requested operations, and the two-round orchestrator
// that drives the conversation protocol.
package agent

import (
	_ "embed"
	"log/slog"

	"github.com/sashabaranov/go-openai/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/jedam19899/loan-fairness-service/services/llm"
)

// Operation names. The catalog is closed: the model may only select
// from these three.
const (
	OpIngestApplication  = "ingest_application"
	OpDisparateImpact    = "disparate_impact"
	OpExplainApplication = "explain_application"
)

// =============================================================================
// Argument types and schemas
// =============================================================================

// The argument struct and the schema for each operation live side by
// side here, and the dispatcher decodes into these same structs. That
// keeps the schema shown to the model and the contract enforced at
// dispatch from drifting apart.

// IngestArgs are the arguments for ingest_application.
type IngestArgs struct {
	ApplicationID string         `json:"application_id" validate:"required"`
	Features      map[string]any `json:"features" validate:"required"`
}

func ingestSchema() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"application_id": {
				Type:        jsonschema.String,
				Description: "Unique identifier of the application",
			},
			"features": {
				Type:                 jsonschema.Object,
				Description:          "Feature map of the application (arbitrary keys, scalar values)",
				AdditionalProperties: true,
			},
		},
		Required: []string{"application_id", "features"},
	}
}

// DisparateImpactArgs are the arguments for disparate_impact.
type DisparateImpactArgs struct {
	Privileged   string `json:"privileged" validate:"required"`
	Unprivileged string `json:"unprivileged" validate:"required"`
}

func disparateImpactSchema() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"privileged": {
				Type:        jsonschema.String,
				Description: "Group value of the privileged group",
			},
			"unprivileged": {
				Type:        jsonschema.String,
				Description: "Group value of the unprivileged group",
			},
		},
		Required: []string{"privileged", "unprivileged"},
	}
}

// ExplainArgs are the arguments for explain_application.
type ExplainArgs struct {
	ApplicationID string `json:"application_id" validate:"required"`
}

func explainSchema() jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"application_id": {
				Type:        jsonschema.String,
				Description: "Unique identifier of the application to explain",
			},
		},
		Required: []string{"application_id"},
	}
}

// =============================================================================
// Registry
// =============================================================================

// Operation is one entry of the closed catalog.
type Operation struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// Registry is the read-only catalog of callable operations plus the
// agent system prompt. Built once at startup.
//
// Thread Safety: safe for concurrent reads after construction.
type Registry struct {
	ops          map[string]Operation
	order        []string
	systemPrompt string
}

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogYAML struct {
	SystemPrompt string `yaml:"system_prompt"`
	Operations   map[string]struct {
		Description string `yaml:"description"`
	} `yaml:"operations"`
}

// fallbackSystemPrompt is used when the embedded catalog cannot be
// parsed, so a bad catalog edit degrades the prompt instead of
// breaking startup.
const fallbackSystemPrompt = "You are FairnessAgent. Use function-calling with the defined operations."

// NewRegistry builds the operation catalog.
//
// Descriptions and the system prompt come from the embedded YAML
// catalog; parameter schemas are compiled in next to their argument
// structs. A broken catalog degrades to terse built-in descriptions
// rather than failing startup.
func NewRegistry() *Registry {
	var catalog catalogYAML
	if err := yaml.Unmarshal(defaultCatalogYAML, &catalog); err != nil {
		slog.Warn("Failed to parse embedded operation catalog, using fallback text", "error", err)
	}

	systemPrompt := catalog.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = fallbackSystemPrompt
	}

	describe := func(name, fallback string) string {
		if op, ok := catalog.Operations[name]; ok && op.Description != "" {
			return op.Description
		}
		return fallback
	}

	ops := []Operation{
		{
			Name:        OpIngestApplication,
			Description: describe(OpIngestApplication, "Ingest a new loan application"),
			Parameters:  ingestSchema(),
		},
		{
			Name:        OpDisparateImpact,
			Description: describe(OpDisparateImpact, "Compute the disparate impact ratio"),
			Parameters:  disparateImpactSchema(),
		},
		{
			Name:        OpExplainApplication,
			Description: describe(OpExplainApplication, "Return per-feature contributions for an application"),
			Parameters:  explainSchema(),
		},
	}

	r := &Registry{
		ops:          make(map[string]Operation, len(ops)),
		order:        make([]string, 0, len(ops)),
		systemPrompt: systemPrompt,
	}
	for _, op := range ops {
		r.ops[op.Name] = op
		r.order = append(r.order, op.Name)
	}
	return r
}

// Lookup returns the operation descriptor for a name.
func (r *Registry) Lookup(name string) (Operation, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// SystemPrompt returns the agent system prompt.
func (r *Registry) SystemPrompt() string {
	return r.systemPrompt
}

// Definitions returns the catalog as tool definitions for the LLM
// client, in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		op := r.ops[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        op.Name,
			Description: op.Description,
			Parameters:  op.Parameters,
		})
	}
	return defs
}
