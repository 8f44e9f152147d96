// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/jedam19899/loan-fairness-service/services/agent"
	"github.com/jedam19899/loan-fairness-service/services/gateway/datatypes"
)

// PromptHandler runs the two-round agent protocol for one prompt.
// *agent.Orchestrator satisfies it.
type PromptHandler interface {
	HandlePrompt(ctx context.Context, prompt string) (*agent.Outcome, error)
}

// HandleAgentPrompt feeds a free-text instruction through the agent
// orchestrator.
//
// Failure kinds map to distinct statuses so callers can tell a
// retryable timeout (504) from an upstream model fault (502).
func HandleAgentPrompt(orchestrator PromptHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := gatewayTracer.Start(c.Request.Context(), "HandleAgentPrompt")
		defer span.End()

		var req datatypes.AgentRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		outcome, err := orchestrator.HandlePrompt(ctx, req.Prompt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			kind := agent.KindOf(err)
			slog.Warn("Agent request failed", "kind", kind, "error", err)
			c.JSON(statusForAgentKind(kind), gin.H{"error": publicMessage(err, kind)})
			return
		}

		c.JSON(http.StatusOK, datatypes.AgentResponse{
			Response:   outcome.Response,
			ToolResult: outcome.ToolResult,
		})
	}
}

// statusForAgentKind maps the agent failure taxonomy to HTTP statuses.
func statusForAgentKind(kind agent.Kind) int {
	switch kind {
	case agent.KindLLMTimeout:
		return http.StatusGatewayTimeout
	case agent.KindLLMUnavailable, agent.KindUnknownOperation, agent.KindMalformedToolArguments:
		// All three are upstream-model faults: either the backend
		// errored, or the model produced output outside its contract.
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the structured reason string for a failure
// without leaking internal detail.
func publicMessage(err error, kind agent.Kind) string {
	var agentErr *agent.Error
	if errors.As(err, &agentErr) {
		return agentErr.Message
	}
	if kind != "" {
		return string(kind)
	}
	return "agent request failed"
}
