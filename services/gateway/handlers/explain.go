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

	"github.com/jedam19899/loan-fairness-service/services/explain"
	"github.com/jedam19899/loan-fairness-service/services/gateway/datatypes"
	"github.com/jedam19899/loan-fairness-service/services/record"
)

// ContributionExplainer is the slice of the attribution engine the
// explain handler needs. *explain.Engine satisfies it.
type ContributionExplainer interface {
	Explain(ctx context.Context, applicationID string) (map[string]float64, error)
}

// HandleExplain returns the per-feature contribution map for one
// stored application.
//
// Unavailable (no model loaded) and not-found map to distinct statuses,
// 503 and 404, so callers can tell the two conditions apart.
func HandleExplain(explainer ContributionExplainer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := gatewayTracer.Start(c.Request.Context(), "HandleExplain")
		defer span.End()

		var req datatypes.ExplainRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		contributions, err := explainer.Explain(ctx, req.ApplicationID)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, datatypes.ExplainResponse{Contributions: contributions})
		case errors.Is(err, explain.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "explanation service unavailable"})
		case errors.Is(err, record.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
		case errors.Is(err, record.ErrCorrupt):
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Stored features are unreadable", "application_id", req.ApplicationID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid features payload"})
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Explain failed", "application_id", req.ApplicationID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to explain application"})
		}
	}
}
