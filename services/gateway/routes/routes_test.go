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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jedam19899/loan-fairness-service/services/agent"
	"github.com/jedam19899/loan-fairness-service/services/explain"
	"github.com/jedam19899/loan-fairness-service/services/llm"
	"github.com/jedam19899/loan-fairness-service/services/record"
)

const testAPIKey = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// echoClient always requests the disparate_impact operation on round 1
// and answers with fixed text on round 2.
type echoClient struct{}

func (echoClient) Complete(_ context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Reply, error) {
	if len(tools) > 0 {
		return &llm.Reply{ToolCall: &llm.ToolCall{
			ID:        "call_1",
			Name:      agent.OpDisparateImpact,
			Arguments: json.RawMessage(`{"privileged": "A", "unprivileged": "B"}`),
		}}, nil
	}
	return &llm.Reply{Content: "The ratio indicates parity."}, nil
}

func buildRouter(t *testing.T) (*gin.Engine, *record.Store) {
	t.Helper()

	store, err := record.Open(record.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	artifact := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(artifact, []byte(`{
		"feature_order": ["age", "score", "income"],
		"weights": [1.0, 0.01, 0.0001],
		"intercept": 0.0
	}`), 0o644))
	model, order, err := explain.LoadModel(artifact)
	require.NoError(t, err)
	engine := explain.NewEngine(store, model, order, nil)

	registry := agent.NewRegistry()
	dispatcher := agent.NewDispatcher(registry, store, engine)
	orchestrator := agent.NewOrchestrator(echoClient{}, dispatcher, registry, time.Second, nil)

	router := gin.New()
	SetupRoutes(router, testAPIKey, store, engine, orchestrator)
	return router, store
}

func do(router *gin.Engine, method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("x-api-key", testAPIKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestGateway exercises every endpoint through the real record store,
// attribution engine, and agent stack.
func TestGateway(t *testing.T) {
	router, store := buildRouter(t)
	ctx := context.Background()

	t.Run("health is open", func(t *testing.T) {
		w := do(router, http.MethodGet, "/health", "", false)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"explain_enabled":true`)
	})

	t.Run("metrics is open", func(t *testing.T) {
		w := do(router, http.MethodGet, "/metrics", "", false)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("operations require the shared secret", func(t *testing.T) {
		for _, ep := range []struct{ method, path string }{
			{http.MethodPost, "/ingest"},
			{http.MethodGet, "/bias/disparate-impact?privileged=A&unprivileged=B"},
			{http.MethodPost, "/explain"},
			{http.MethodPost, "/agent"},
		} {
			w := do(router, ep.method, ep.path, "{}", false)
			assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", ep.method, ep.path)
		}
	})

	t.Run("ingest and reread", func(t *testing.T) {
		w := do(router, http.MethodPost, "/ingest",
			`{"application_id": "app-1", "features": {"age": 40, "score": 700, "income": 50000, "group": "A"}}`, true)
		require.Equal(t, http.StatusOK, w.Code)

		features, err := store.GetFeatures(ctx, "app-1")
		require.NoError(t, err)
		assert.Equal(t, "A", features["group"])

		// Re-ingest with different features: success, first write wins.
		w = do(router, http.MethodPost, "/ingest",
			`{"application_id": "app-1", "features": {"group": "B"}}`, true)
		require.Equal(t, http.StatusOK, w.Code)

		features, err = store.GetFeatures(ctx, "app-1")
		require.NoError(t, err)
		assert.Equal(t, "A", features["group"])
	})

	t.Run("disparate impact over seeded records", func(t *testing.T) {
		// 10 in A with 5 approved, 20 in B with 10 approved.
		seed := func(group string, total, approved int) {
			for i := 0; i < total; i++ {
				id := fmt.Sprintf("%s-%d", group, i)
				w := do(router, http.MethodPost, "/ingest", fmt.Sprintf(
					`{"application_id": %q, "features": {"group": %q}}`, id, group), true)
				require.Equal(t, http.StatusOK, w.Code)
				if i < approved {
					require.NoError(t, store.SetDecision(ctx, id, record.DecisionApproved))
				}
			}
		}
		seed("A", 10, 5)
		seed("B", 20, 10)

		w := do(router, http.MethodGet, "/bias/disparate-impact?privileged=A&unprivileged=B", "", true)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Ratio float64 `json:"ratio"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.InDelta(t, 1.0, body.Ratio, 1e-12)
	})

	t.Run("explain stored application", func(t *testing.T) {
		w := do(router, http.MethodPost, "/explain", `{"application_id": "app-1"}`, true)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Contributions map[string]float64 `json:"contributions"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Contributions, 3)
		assert.InDelta(t, 40.0, body.Contributions["age"], 1e-9)
		assert.InDelta(t, 7.0, body.Contributions["score"], 1e-9)
		assert.InDelta(t, 5.0, body.Contributions["income"], 1e-9)
	})

	t.Run("explain unknown application", func(t *testing.T) {
		w := do(router, http.MethodPost, "/explain", `{"application_id": "ghost"}`, true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("agent runs the tool path", func(t *testing.T) {
		w := do(router, http.MethodPost, "/agent", `{"prompt": "compare group B to group A"}`, true)
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Response   string        `json:"response"`
			ToolResult *agent.Result `json:"tool_result"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "The ratio indicates parity.", body.Response)
		require.NotNil(t, body.ToolResult)
		assert.True(t, body.ToolResult.Succeeded())
	})

	t.Run("request ids on every response", func(t *testing.T) {
		w := do(router, http.MethodGet, "/health", "", false)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})
}
