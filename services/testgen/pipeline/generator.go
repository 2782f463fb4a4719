// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline composes prompt building, completion, normalization and
// mapping into one generation call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianQA/services/testgen/agent"
	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
	"github.com/AleutianAI/AleutianQA/services/testgen/mapper"
	"github.com/AleutianAI/AleutianQA/services/testgen/normalize"
	"github.com/AleutianAI/AleutianQA/services/testgen/observability"
	"github.com/AleutianAI/AleutianQA/services/testgen/prompt"
)

// Metadata keys added on top of the mapper's.
const (
	MetaGenerationID = "generation_id"
	MetaStrategy     = "strategy"
	MetaTurns        = "turns"
	MetaFallbackFrom = "fallback_from"
	MetaModel        = "model"
)

var tracer = otel.Tracer("aleutianqa.pipeline")

// Generator runs the generation pipeline.
//
// # Description
//
// Every call builds its own prompt, receives its own raw text and maps its
// own suite. Nothing is cached or shared between calls.
//
// # Thread Safety
//
// Generator is safe for concurrent use if its Completer is.
type Generator struct {
	completer agent.Completer
	opts      agent.Options
	model     string
	metrics   *observability.Metrics
}

// Config configures a Generator.
type Config struct {
	// Completer is the completion strategy. Required.
	Completer agent.Completer

	// Options are passed to every completion call.
	Options agent.Options

	// Model labels token metrics and metadata. Optional.
	Model string

	// Metrics may be nil.
	Metrics *observability.Metrics
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Completer == nil {
		return nil, errors.New("pipeline: completer must not be nil")
	}
	return &Generator{
		completer: cfg.Completer,
		opts:      cfg.Options,
		model:     cfg.Model,
		metrics:   cfg.Metrics,
	}, nil
}

// Strategy returns the configured strategy name.
func (g *Generator) Strategy() string {
	return g.completer.Strategy()
}

// Generate produces a test suite for req.
//
// # Description
//
// Runs Build, Complete, Normalize and Map in sequence. A model answer that
// holds no usable JSON is not an error: the response then has zero test
// cases, a diagnostic coverage summary and the diagnostic fields in its
// metadata.
//
// # Inputs
//
//   - ctx: Forwarded to the backend. The pipeline adds no timeout of its own.
//   - req: The suite request.
//
// # Outputs
//
//   - *datatypes.TestSuiteResponse: The mapped suite.
//   - error: Wraps agent.ErrGenerationFailed for backend failures, or is a
//     *mapper.MissingFieldError / *mapper.InvalidFieldError.
func (g *Generator) Generate(ctx context.Context, req datatypes.TestSuiteRequest) (*datatypes.TestSuiteResponse, error) {
	ctx, span := tracer.Start(ctx, "Generator.Generate")
	defer span.End()

	generationID := uuid.NewString()
	span.SetAttributes(
		attribute.String("generation.id", generationID),
		attribute.String("generation.strategy", g.completer.Strategy()),
		attribute.String("generation.issue_key", req.IssueKey),
	)
	start := time.Now()

	logger := slog.With("generation_id", generationID, "issue_key", req.IssueKey)
	logger.Info("Generating test cases", "title", req.Title, "strategy", g.completer.Strategy())

	payload, err := prompt.Build(req)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	completion, err := g.completer.Complete(ctx, payload, g.opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		g.metrics.RecordGeneration(g.completer.Strategy(), observability.OutcomeGenerationFailed, time.Since(start).Seconds())
		return nil, err
	}
	g.metrics.RecordCompletion(completion.Strategy, g.model, completion.Turns, completion.ToolInvocations,
		completion.InputTokens, completion.OutputTokens)

	suite := normalize.Normalize(completion.Text)
	reason := normalize.Reason(suite)

	resp, err := mapper.Map(suite, mapper.ContextFor(req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mapping failed")
		logger.Warn("Model output failed mapping", "error", err)
		g.metrics.RecordGeneration(completion.Strategy, observability.OutcomeMappingFailed, time.Since(start).Seconds())
		return nil, err
	}

	resp.Metadata[MetaGenerationID] = generationID
	resp.Metadata[MetaStrategy] = completion.Strategy
	resp.Metadata[MetaTurns] = completion.Turns
	if completion.FallbackFrom != "" {
		resp.Metadata[MetaFallbackFrom] = completion.FallbackFrom
	}
	if g.model != "" {
		resp.Metadata[MetaModel] = g.model
	}

	outcome := observability.OutcomeSuccess
	if reason != normalize.ReasonNone {
		outcome = observability.OutcomeDegraded
		g.metrics.RecordDegraded(reason)
		logger.Warn("Returning diagnostic empty suite", "reason", reason)
	} else {
		g.metrics.RecordTestCases(len(resp.TestCases))
	}
	g.metrics.RecordGeneration(completion.Strategy, outcome, time.Since(start).Seconds())

	span.SetAttributes(
		attribute.Int("generation.test_cases", len(resp.TestCases)),
		attribute.String("generation.outcome", string(outcome)),
	)
	logger.Info("Generation finished",
		"test_cases", len(resp.TestCases),
		"outcome", outcome,
		"turns", completion.Turns,
		"duration", time.Since(start))
	return resp, nil
}
