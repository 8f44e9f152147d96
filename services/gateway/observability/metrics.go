// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides HTTP metrics for the gateway.
//
// Metrics are exposed via the /metrics endpoint for Prometheus
// scraping. All metric operations are thread-safe via Prometheus's
// internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "fairness"

// HTTPMetrics holds the request-level Prometheus metrics.
//
// Initialize once at startup via NewHTTPMetrics and attach Middleware
// to the router.
type HTTPMetrics struct {
	// RequestsTotal counts requests by route and status code.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration measures wall time per route.
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the gateway metrics with the default
// Prometheus registry.
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"route", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 60},
		}, []string{"route"}),
	}
}

// Middleware records one observation per request.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
