// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers for the fairness gateway.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/jedam19899/loan-fairness-service/services/gateway/datatypes"
)

var gatewayTracer = otel.Tracer("fairness.gateway.handlers")

// RecordIngestor is the write slice of the record store the ingest
// handler needs. *record.Store satisfies it.
type RecordIngestor interface {
	InsertIfAbsent(ctx context.Context, applicationID string, features map[string]any) (bool, error)
}

// HandleIngest records one application.
//
// The response is {"status":"success"} even when the ID already exists:
// a duplicate insert is a no-op by contract, not an error.
func HandleIngest(store RecordIngestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := gatewayTracer.Start(c.Request.Context(), "HandleIngest")
		defer span.End()

		var req datatypes.IngestRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		inserted, err := store.InsertIfAbsent(ctx, req.ApplicationID, req.Features)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to insert application", "application_id", req.ApplicationID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record application"})
			return
		}
		if !inserted {
			slog.Debug("Duplicate application ignored", "application_id", req.ApplicationID)
		}
		c.JSON(http.StatusOK, datatypes.IngestResponse{Status: "success"})
	}
}
