// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the gateway's request and response shapes.
package datatypes

import (
	"github.com/jedam19899/loan-fairness-service/services/agent"
)

// IngestRequest records one loan application.
type IngestRequest struct {
	ApplicationID string         `json:"application_id" binding:"required"`
	Features      map[string]any `json:"features" binding:"required"`
}

// IngestResponse is always {"status": "success"}, including on
// duplicate IDs (idempotent insert).
type IngestResponse struct {
	Status string `json:"status"`
}

// DisparateImpactResponse carries the computed ratio. 0.0 covers the
// missing-data edge cases as well as a truly zero impact.
type DisparateImpactResponse struct {
	Ratio float64 `json:"ratio"`
}

// ExplainRequest asks for the contribution map of one application.
type ExplainRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
}

// ExplainResponse maps each feature-order name to its attribution
// score.
type ExplainResponse struct {
	Contributions map[string]float64 `json:"contributions"`
}

// AgentRequest is one free-text instruction for the agent.
type AgentRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// AgentResponse is the model's final text plus the raw tool result.
// ToolResult is null when the model answered without calling an
// operation.
type AgentResponse struct {
	Response   string        `json:"response"`
	ToolResult *agent.Result `json:"tool_result"`
}
