// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the test case
// generator.
//
// # Description
//
// Metrics include:
//   - Generation counters by strategy and outcome
//   - Generation latency
//   - Degraded results by reason
//   - Agent turns and tool invocations
//   - Token usage by direction and model
//   - Issue tracker calls by operation and outcome
//
// Metrics are exposed on /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe. Every method is a no-op on a nil
// *Metrics, so callers never need to check for it.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const (
	metricsNamespace = "aleutianqa"
	generatorSubsys  = "generator"
	trackerSubsys    = "issue_tracker"
)

// Outcome labels a finished generation call.
type Outcome string

const (
	// OutcomeSuccess means at least one test case was mapped, or the model
	// legitimately returned an empty list.
	OutcomeSuccess Outcome = "success"

	// OutcomeDegraded means a diagnostic empty suite was returned.
	OutcomeDegraded Outcome = "degraded"

	// OutcomeGenerationFailed means the backend could not be reached.
	OutcomeGenerationFailed Outcome = "generation_failed"

	// OutcomeMappingFailed means a test case lacked a required field.
	OutcomeMappingFailed Outcome = "mapping_failed"
)

// Metrics holds every collector of the generator.
type Metrics struct {
	// GenerationsTotal counts generation calls.
	// Labels: strategy, outcome
	GenerationsTotal *prometheus.CounterVec

	// GenerationDurationSeconds measures end-to-end generation latency.
	// Labels: strategy
	GenerationDurationSeconds *prometheus.HistogramVec

	// DegradedTotal counts diagnostic empty suites.
	// Labels: reason (no_json, parse_failure, invalid_structure)
	DegradedTotal *prometheus.CounterVec

	// TestCasesGenerated observes how many cases each successful call mapped.
	TestCasesGenerated prometheus.Histogram

	// AgentTurns observes the number of backend round-trips per call.
	// Labels: strategy
	AgentTurns *prometheus.HistogramVec

	// ToolInvocationsTotal counts agent tool calls.
	// Labels: tool
	ToolInvocationsTotal *prometheus.CounterVec

	// TokensTotal counts tokens by direction and model.
	// Labels: direction (input, output), model
	TokensTotal *prometheus.CounterVec

	// IssueTrackerRequestsTotal counts issue tracker calls.
	// Labels: operation (fetch, create), status (success, not_found, error)
	IssueTrackerRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on reg.
//
// # Inputs
//
//   - reg: Target registry. Use prometheus.DefaultRegisterer in production
//     and prometheus.NewRegistry() in tests.
//
// # Outputs
//
//   - *Metrics: The registered collectors.
//
// # Limitations
//
//   - Panics when called twice with the same registry (duplicate
//     registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsys,
				Name:      "requests_total",
				Help:      "Total number of generation calls by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		GenerationDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsys,
				Name:      "duration_seconds",
				Help:      "End-to-end generation latency in seconds",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"strategy"},
		),
		DegradedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsys,
				Name:      "degraded_total",
				Help:      "Total number of diagnostic empty suites by reason",
			},
			[]string{"reason"},
		),
		TestCasesGenerated: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsys,
				Name:      "test_cases",
				Help:      "Number of test cases mapped per successful call",
				Buckets:   []float64{0, 1, 3, 5, 8, 12, 20, 40},
			},
		),
		AgentTurns: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsys,
				Name:      "turns",
				Help:      "Backend round-trips per generation call",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
			},
			[]string{"strategy"},
		),
		ToolInvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsys,
				Name:      "tool_invocations_total",
				Help:      "Total number of agent tool calls by tool",
			},
			[]string{"tool"},
		),
		TokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generatorSubsys,
				Name:      "tokens_total",
				Help:      "Total tokens processed by direction and model",
			},
			[]string{"direction", "model"},
		),
		IssueTrackerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: trackerSubsys,
				Name:      "requests_total",
				Help:      "Total number of issue tracker calls by operation and status",
			},
			[]string{"operation", "status"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordGeneration records a finished generation call.
func (m *Metrics) RecordGeneration(strategy string, outcome Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(strategy, string(outcome)).Inc()
	m.GenerationDurationSeconds.WithLabelValues(strategy).Observe(seconds)
}

// RecordDegraded records a diagnostic empty suite.
func (m *Metrics) RecordDegraded(reason string) {
	if m == nil {
		return
	}
	m.DegradedTotal.WithLabelValues(reason).Inc()
}

// RecordTestCases records how many cases a call produced.
func (m *Metrics) RecordTestCases(n int) {
	if m == nil {
		return
	}
	m.TestCasesGenerated.Observe(float64(n))
}

// RecordCompletion records turn count, tool calls and token usage of one
// completion.
func (m *Metrics) RecordCompletion(strategy, model string, turns int, tools map[string]int, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.AgentTurns.WithLabelValues(strategy).Observe(float64(turns))
	for tool, n := range tools {
		m.ToolInvocationsTotal.WithLabelValues(tool).Add(float64(n))
	}
	m.TokensTotal.WithLabelValues("input", model).Add(float64(inputTokens))
	m.TokensTotal.WithLabelValues("output", model).Add(float64(outputTokens))
}

// RecordIssueTracker records an issue tracker call.
func (m *Metrics) RecordIssueTracker(operation, status string) {
	if m == nil {
		return
	}
	m.IssueTrackerRequestsTotal.WithLabelValues(operation, status).Inc()
}
