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
	"net/http"

	"github.com/gin-gonic/gin"
)

// ExplainAvailability reports whether the attribution model is loaded.
// *explain.Engine satisfies it.
type ExplainAvailability interface {
	Available() bool
}

// HealthCheck reports process liveness and whether the explain path is
// enabled (it is disabled when the model artifact was missing at
// startup).
func HealthCheck(engine ExplainAvailability) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"explain_enabled": engine.Available(),
		})
	}
}
