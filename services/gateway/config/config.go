// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the gateway's environment-driven configuration.
//
// All values are read exactly once at process start. Fallbacks are
// logged so a misconfigured deployment is visible in the startup log.
package config

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds everything the process reads from the environment.
type Config struct {
	// Port is the HTTP listen port (FAIRNESS_PORT).
	Port string

	// APIKey is the shared secret checked on every authenticated
	// request (X_API_KEY).
	APIKey string

	// ModelPath is the attribution model artifact location
	// (MODEL_PATH). A missing artifact disables the explain path
	// without preventing startup.
	ModelPath string

	// RecordDBPath is the BadgerDB directory (RECORD_DB_PATH).
	RecordDBPath string

	// LLMTimeout bounds each individual language-model round
	// (LLM_TIMEOUT_SECONDS).
	LLMTimeout time.Duration

	// LLMBackend selects the language-model backend, "openai" or
	// "ollama" (LLM_BACKEND_TYPE).
	LLMBackend string

	// WorkerSlots bounds concurrent model-bound work: LLM rounds and
	// attribution calls share one gate (WORKER_SLOTS).
	WorkerSlots int64

	// LogLevel is the minimum log severity (LOG_LEVEL).
	LogLevel string

	// LogDir enables JSON file logging when set (LOG_DIR).
	LogDir string
}

// Load reads the configuration from the environment.
func Load() Config {
	cfg := Config{
		Port:         getenv("FAIRNESS_PORT", "8000"),
		APIKey:       os.Getenv("X_API_KEY"),
		ModelPath:    getenv("MODEL_PATH", "model.json"),
		RecordDBPath: getenv("RECORD_DB_PATH", "./data/records"),
		LLMBackend:   getenv("LLM_BACKEND_TYPE", "openai"),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogDir:       os.Getenv("LOG_DIR"),
	}

	if cfg.APIKey == "" {
		cfg.APIKey = "secret-key"
		slog.Warn("X_API_KEY not set, using the default shared secret")
	}

	timeoutSecs := 30.0
	if raw := os.Getenv("LLM_TIMEOUT_SECONDS"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			slog.Warn("Invalid LLM_TIMEOUT_SECONDS, defaulting to 30", "value", raw)
		} else {
			timeoutSecs = parsed
		}
	}
	cfg.LLMTimeout = time.Duration(timeoutSecs * float64(time.Second))

	slots := int64(2 * runtime.GOMAXPROCS(0))
	if raw := os.Getenv("WORKER_SLOTS"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			slog.Warn("Invalid WORKER_SLOTS, using default", "value", raw, "default", slots)
		} else {
			slots = parsed
		}
	}
	cfg.WorkerSlots = slots

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
