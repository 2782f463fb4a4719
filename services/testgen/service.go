// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package testgen wires the test case generator service together.
//
// # Description
//
// The service turns a feature description, typed in or fetched from Jira,
// into a structured test suite by prompting an LLM:
//
//	HTTP request
//	     │
//	     ▼
//	handlers ──► jira.Client (optional)
//	     │
//	     ▼
//	pipeline.Generator
//	     │  prompt.Build ─► agent.Completer ─► normalize.Normalize ─► mapper.Map
//	     ▼
//	TestSuiteResponse
//
// # Usage
//
//	settings, err := config.Load(config.Options{EnvFile: ".env"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := testgen.New(settings, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
package testgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianQA/services/llm"
	"github.com/AleutianAI/AleutianQA/services/testgen/agent"
	"github.com/AleutianAI/AleutianQA/services/testgen/config"
	"github.com/AleutianAI/AleutianQA/services/testgen/handlers"
	"github.com/AleutianAI/AleutianQA/services/testgen/jira"
	"github.com/AleutianAI/AleutianQA/services/testgen/middleware"
	"github.com/AleutianAI/AleutianQA/services/testgen/observability"
	"github.com/AleutianAI/AleutianQA/services/testgen/pipeline"
	"github.com/AleutianAI/AleutianQA/services/testgen/routes"
)

// OTelStdout selects the stdout span exporter instead of an OTLP collector.
const OTelStdout = "stdout"

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the runnable test case generator.
//
// # Thread Safety
//
// Run must be called at most once. Router is safe to use concurrently.
type Service interface {
	// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives, then
	// shuts down gracefully. A clean shutdown returns nil.
	Run(ctx context.Context) error

	// Router returns the configured engine, mainly for tests.
	Router() *gin.Engine
}

// Options inject dependencies into New. Every field is optional.
type Options struct {
	// Client replaces the LLM backend built from settings.
	Client llm.Client

	// Tracker replaces the Jira client built from settings.
	Tracker handlers.IssueTracker

	// Registry receives the service metrics. Defaults to a fresh registry
	// with Go and process collectors.
	Registry *prometheus.Registry
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	settings      *config.Settings
	router        *gin.Engine
	generator     *pipeline.Generator
	tracker       handlers.IssueTracker
	registry      *prometheus.Registry
	tracerCleanup func(context.Context)
}

// New builds the service from validated settings.
//
// # Description
//
// Initializes, in order: tracing, metrics, the LLM backend, the completion
// strategy and generator, the optional Jira client and the router. Jira
// is skipped without error when its settings are incomplete.
//
// # Inputs
//
//   - settings: Validated settings. Must not be nil.
//   - opts: Injected dependencies. May be nil.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Non-nil if a component cannot be built.
func New(settings *config.Settings, opts *Options) (Service, error) {
	if settings == nil {
		return nil, errors.New("settings are required")
	}
	if opts == nil {
		opts = &Options{}
	}
	s := &service{settings: settings}

	cleanup, err := initTracer(settings.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	var metrics *observability.Metrics
	if settings.Telemetry.Metrics {
		s.registry = opts.Registry
		if s.registry == nil {
			s.registry = prometheus.NewRegistry()
			s.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		metrics = observability.NewMetrics(s.registry)
		slog.Info("Initialized Prometheus metrics")
	}

	client := opts.Client
	if client == nil {
		client, err = BuildLLMClient(settings.LLM)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
		}
	}

	s.generator, err = BuildGenerator(settings.Generation, client, metrics)
	if err != nil {
		s.cleanup()
		return nil, err
	}

	s.tracker = opts.Tracker
	if s.tracker == nil {
		s.tracker, err = BuildIssueTracker(settings.Jira, metrics)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to initialize Jira client: %w", err)
		}
	}

	s.initRouter()
	return s, nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              s.settings.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting test case generator",
			"addr", server.Addr,
			"strategy", s.generator.Strategy(),
			"jira", s.tracker != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down test case generator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.settings.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Router implements Service.
func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) initRouter() {
	s.router = gin.New()
	s.router.Use(gin.Recovery())

	opts := routes.Options{
		CORSOrigins:    s.settings.Server.CORSOrigins,
		RequestTimeout: s.settings.Server.RequestTimeout,
		RateLimiter:    middleware.NewRateLimiter(s.settings.Server.RateLimitRPS, s.settings.Server.RateLimitBurst),
	}
	if s.settings.Telemetry.OTelEndpoint != "" {
		opts.ServiceName = s.settings.Telemetry.ServiceName
	}
	if s.registry != nil {
		opts.Gatherer = s.registry
	}
	routes.SetupRoutes(s.router, s.generator, s.tracker, opts)
}

func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Builders
// =============================================================================

// BuildLLMClient creates the backend named in settings.
func BuildLLMClient(cfg config.LLMSettings) (llm.Client, error) {
	switch cfg.Backend {
	case config.BackendAnthropic:
		slog.Info("Using Anthropic (Claude) LLM backend")
		return llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
	case config.BackendOpenAI:
		slog.Info("Using OpenAI LLM backend")
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case config.BackendOllama:
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	case config.BackendMock:
		slog.Warn("Using mock LLM backend; generated suites are canned")
		mock := llm.NewMockClient().SetDefaultResponse(&llm.Response{
			Content:    SampleSuiteJSON,
			StopReason: llm.StopReasonEnd,
		})
		if cfg.Model != "" {
			mock = mock.WithModel(cfg.Model)
		}
		return mock, nil
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", cfg.Backend)
	}
}

// BuildGenerator creates the completion strategy and the generator on top
// of client. metrics may be nil.
func BuildGenerator(cfg config.GenerationSettings, client llm.Client, metrics *observability.Metrics) (*pipeline.Generator, error) {
	completer, err := agent.NewCompleter(cfg.Strategy, client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completer: %w", err)
	}
	gen, err := pipeline.NewGenerator(pipeline.Config{
		Completer: completer,
		Options: agent.Options{
			MaxTurns:    cfg.MaxTurns,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		},
		Model:   client.Model(),
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	return gen, nil
}

// BuildIssueTracker creates the Jira client. It returns a nil tracker and
// no error when Jira is not configured.
func BuildIssueTracker(cfg config.JiraSettings, metrics *observability.Metrics) (handlers.IssueTracker, error) {
	if !cfg.Enabled() {
		slog.Info("Jira not configured, issue endpoints disabled")
		return nil, nil
	}
	client, err := jira.NewClient(jira.Config{
		URL:           cfg.URL,
		Email:         cfg.Email,
		APIToken:      cfg.APIToken,
		CriteriaField: cfg.CriteriaField,
		TestIssueType: cfg.TestIssueType,
		Timeout:       cfg.Timeout,
		Metrics:       metrics,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// initTracer installs the global tracer provider.
//
// # Description
//
// An empty endpoint leaves the no-op provider in place. OTelStdout prints
// spans to stdout. Anything else is an OTLP gRPC collector address reached
// over an insecure connection.
//
// # Outputs
//
//   - func(context.Context): Flushes and stops the exporter.
//   - error: Non-nil if the exporter cannot be created.
func initTracer(cfg config.TelemetrySettings) (func(context.Context), error) {
	if cfg.OTelEndpoint == "" {
		return func(context.Context) {}, nil
	}
	ctx := context.Background()

	var exporter sdktrace.SpanExporter
	if cfg.OTelEndpoint == OTelStdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		exporter = exp
	} else {
		conn, err := grpc.NewClient(cfg.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exporter = exp
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	slog.Info("Initialized tracing", "endpoint", cfg.OTelEndpoint)

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}

// SampleSuiteJSON is what the mock backend answers, a small valid suite.
const SampleSuiteJSON = `{
  "test_cases": [
    {
      "title": "Primary flow succeeds",
      "description": "The main path of the feature works end to end.",
      "type": "functional",
      "priority": "high",
      "preconditions": ["The user is signed in"],
      "steps": [
        {"step_number": 1, "action": "Open the feature", "expected_result": "The feature loads"},
        {"step_number": 2, "action": "Complete the main action", "expected_result": "A success message is shown"}
      ],
      "expected_outcome": "The action is persisted and confirmed.",
      "tags": ["smoke"]
    },
    {
      "title": "Invalid input is rejected",
      "description": "Bad input produces a validation error and no change.",
      "type": "functional",
      "priority": "medium",
      "steps": [
        {"step_number": 1, "action": "Submit an empty form", "expected_result": "A validation error is shown"}
      ],
      "expected_outcome": "Nothing is saved.",
      "tags": ["negative"]
    }
  ],
  "coverage_summary": "Covers the primary flow and input validation."
}`
