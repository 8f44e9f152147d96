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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	agentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fairness_agent_requests_total",
		Help: "Total agent requests by terminal outcome",
	}, []string{"outcome"})

	agentFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fairness_agent_failures_total",
		Help: "Total fatal agent failures by error kind",
	}, []string{"kind"})

	toolDispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fairness_tool_dispatches_total",
		Help: "Total tool dispatches by operation and result status",
	}, []string{"operation", "status"})

	llmRoundDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fairness_llm_round_duration_seconds",
		Help:    "Duration of language-model conversation rounds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"round"})
)
