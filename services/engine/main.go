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
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/kodiak/pkg/logging"
	"github.com/AleutianAI/kodiak/services/engine/api"
	"github.com/AleutianAI/kodiak/services/engine/config"
	"github.com/AleutianAI/kodiak/services/engine/contextstore"
	"github.com/AleutianAI/kodiak/services/engine/health"
	"github.com/AleutianAI/kodiak/services/engine/orchestrator"
	"github.com/AleutianAI/kodiak/services/engine/registry"
	"github.com/AleutianAI/kodiak/services/engine/storage"
	"github.com/AleutianAI/kodiak/services/engine/storage/badgerstore"
	"github.com/AleutianAI/kodiak/services/engine/validation"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "kodiak-otel-collector:4317"
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
		resource.WithAttributes(semconv.ServiceNameKey.String("kodiak-engine")))
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
	configPath := os.Getenv("KODIAK_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("FATAL: could not load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Log.Level),
		LogDir:  cfg.Log.Dir,
		Service: "engine",
		JSON:    cfg.Log.JSON,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional persistence. In-memory state stays authoritative; the
	// store reloads contexts and mirrors history across restarts.
	var persist storage.Store
	if cfg.Storage.Enabled {
		persist, err = badgerstore.Open(badgerstore.DefaultConfig(cfg.Storage.Path))
		if err != nil {
			log.Fatalf("FATAL: could not open storage at %s: %v", cfg.Storage.Path, err)
		}
		defer persist.Close()
		logger.Info("persistence enabled", "path", cfg.Storage.Path)
	}

	reg := registry.New()

	pipeline := validation.NewPipeline(
		[]validation.Validator{
			validation.NewSizeValidator(),
			validation.NewPatternValidator(),
			&validation.CompletenessValidator{},
		},
		validation.Config{
			ValidatorTimeout: cfg.Pipeline.ValidatorTimeout(),
			CPUWorkers:       cfg.Pipeline.CPUWorkers,
		},
		logger.Slog(),
	)

	contexts := contextstore.NewStore(contextstore.SystemClock{}, persist, logger.Slog())
	history := orchestrator.NewHistory(cfg.History.Capacity, persist, logger.Slog())
	orch := orchestrator.New(reg, pipeline, contexts, history, logger.Slog())

	monitor := health.NewMonitor(reg, health.Config{
		Interval:     cfg.Health.Interval(),
		ProbeTimeout: cfg.Health.ProbeTimeout(),
	}, logger.Slog())
	if err := monitor.Start(ctx); err != nil {
		log.Fatalf("FATAL: could not start the health monitor: %v", err)
	}
	defer monitor.Stop()

	sweeper := contextstore.NewSweeper(contexts, cfg.Contexts.SweepInterval(), logger.Slog())
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("FATAL: could not start the context sweeper: %v", err)
	}
	defer sweeper.Stop()

	// Live log-level changes via the config file watcher.
	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, logger.Slog(), func(next config.Config) {
				logger.SetLevel(logging.ParseLevel(next.Log.Level))
			})
			if err != nil {
				logger.Warn("config watcher not running", "error", err)
			}
		}()
	}

	var taskLimiter *rate.Limiter
	if cfg.Server.RateLimitRPS > 0 {
		taskLimiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst)
	}

	router := gin.Default()
	api.SetupRoutes(router, api.Deps{
		Registry:     reg,
		Orchestrator: orch,
		Contexts:     contexts,
		Monitor:      monitor,
		Logger:       logger.Slog(),
		DefaultTTL:   cfg.Contexts.DefaultTTL(),
	}, taskLimiter)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}
