// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(apiKey string) *gin.Engine {
	router := gin.New()
	router.Use(APIKeyAuth(apiKey))
	router.GET("/op", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

// TestAPIKeyAuth verifies only the exact shared secret passes.
func TestAPIKeyAuth(t *testing.T) {
	router := protectedRouter("secret-key")

	tests := []struct {
		name       string
		key        string
		setHeader  bool
		wantStatus int
	}{
		{"valid key", "secret-key", true, http.StatusOK},
		{"wrong key", "wrong-key", true, http.StatusUnauthorized},
		{"empty key", "", true, http.StatusUnauthorized},
		{"missing header", "", false, http.StatusUnauthorized},
		{"prefix of key", "secret", true, http.StatusUnauthorized},
		{"key with suffix", "secret-key2", true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/op", nil)
			if tt.setHeader {
				req.Header.Set("x-api-key", tt.key)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				// Uniform rejection body, nothing about the expected
				// credential.
				assert.JSONEq(t, `{"error": "unauthorized"}`, w.Body.String())
			}
		})
	}
}

// TestRequestID verifies a UUID is assigned and an inbound ID is
// preserved.
func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/op", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	t.Run("generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/op", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/op", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	})
}
