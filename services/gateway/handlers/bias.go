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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/jedam19899/loan-fairness-service/services/fairness"
	"github.com/jedam19899/loan-fairness-service/services/gateway/datatypes"
)

// HandleDisparateImpact computes the disparate impact ratio between
// two groups named by query parameters.
//
// Groups matching zero records yield ratio 0.0, not an error; callers
// must treat 0.0 as ambiguous between "no impact" and "no data".
func HandleDisparateImpact(counts fairness.GroupCounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := gatewayTracer.Start(c.Request.Context(), "HandleDisparateImpact")
		defer span.End()

		privileged := c.Query("privileged")
		unprivileged := c.Query("unprivileged")
		if privileged == "" || unprivileged == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "privileged and unprivileged query parameters are required"})
			return
		}

		ratio, err := fairness.DisparateImpact(ctx, counts, privileged, unprivileged)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Disparate impact computation failed",
				"privileged", privileged, "unprivileged", unprivileged, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute disparate impact"})
			return
		}
		c.JSON(http.StatusOK, datatypes.DisparateImpactResponse{Ratio: ratio})
	}
}
