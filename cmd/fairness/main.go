// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/jedam19899/loan-fairness-service/services/agent"
	"github.com/jedam19899/loan-fairness-service/services/explain"
	"github.com/jedam19899/loan-fairness-service/services/gateway/config"
	"github.com/jedam19899/loan-fairness-service/services/gateway/routes"
	"github.com/jedam19899/loan-fairness-service/services/llm"
	"github.com/jedam19899/loan-fairness-service/services/record"

	"github.com/jedam19899/loan-fairness-service/pkg/logging"
)

// defaultFeatureOrder only matters while no model artifact is loaded;
// a loaded artifact carries its own training-time order.
var defaultFeatureOrder = []string{"age", "score", "income"}

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set. Tracing runs with a no-op exporter.")
		return func(context.Context) {}, nil
	}

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("fairness-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	cfg := config.Load()

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "fairness",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	store, err := record.Open(record.DefaultConfig(cfg.RecordDBPath))
	if err != nil {
		log.Fatalf("FATAL: Could not open the record store: %v", err)
	}
	defer store.Close()
	slog.Info("Record store opened", "path", cfg.RecordDBPath)

	var model explain.AttributionModel
	loaded, featureOrder, err := explain.LoadModel(cfg.ModelPath)
	switch {
	case err == nil:
		model = loaded
		slog.Info("Loaded attribution model", "path", cfg.ModelPath, "features", len(featureOrder))
	case errors.Is(err, os.ErrNotExist):
		// A nil model leaves the engine in its explicit unavailable
		// state; the rest of the service still starts.
		slog.Warn("Model artifact not found, the /explain endpoint will be disabled", "path", cfg.ModelPath)
		featureOrder = defaultFeatureOrder
	default:
		log.Fatalf("FATAL: Could not load the attribution model: %v", err)
	}

	gate := semaphore.NewWeighted(cfg.WorkerSlots)
	engine := explain.NewEngine(store, model, featureOrder, gate)

	log.Println("Configuring the LLM Client")
	var llmClient llm.Client
	switch cfg.LLMBackend {
	case "openai":
		llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to openai")
		llmClient, err = llm.NewOpenAIClient()
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	registry := agent.NewRegistry()
	dispatcher := agent.NewDispatcher(registry, store, engine)
	orchestrator := agent.NewOrchestrator(llmClient, dispatcher, registry, cfg.LLMTimeout, gate)

	router := gin.Default()
	router.Use(otelgin.Middleware("fairness-service"))

	routes.SetupRoutes(router, cfg.APIKey, store, engine, orchestrator)

	log.Println("Starting the fairness service on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
