// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jedam19899/loan-fairness-service/services/agent"
	"github.com/jedam19899/loan-fairness-service/services/explain"
	"github.com/jedam19899/loan-fairness-service/services/gateway/handlers"
	"github.com/jedam19899/loan-fairness-service/services/gateway/middleware"
	"github.com/jedam19899/loan-fairness-service/services/gateway/observability"
	"github.com/jedam19899/loan-fairness-service/services/record"
)

// SetupRoutes registers all gateway endpoints.
//
// Health and metrics are open; every operation endpoint sits behind the
// shared-secret check.
func SetupRoutes(router *gin.Engine, apiKey string, store *record.Store,
	engine *explain.Engine, orchestrator *agent.Orchestrator) {

	metrics := observability.NewHTTPMetrics()
	router.Use(middleware.RequestID(), metrics.Middleware())

	router.GET("/health", handlers.HealthCheck(engine))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/", middleware.APIKeyAuth(apiKey))
	{
		authed.POST("/ingest", handlers.HandleIngest(store))
		authed.GET("/bias/disparate-impact", handlers.HandleDisparateImpact(store))
		authed.POST("/explain", handlers.HandleExplain(engine))
		authed.POST("/agent", handlers.HandleAgentPrompt(orchestrator))
	}
}
