// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent implements the completion strategies of the test case
// generator.
//
// Both strategies satisfy Completer and differ only in how they talk to the
// backend:
//
//   - AgenticCompleter runs a bounded, strictly sequential tool loop. The
//     model may call validate_test_case and structure_test_cases before it
//     answers. Text from every turn is concatenated in order.
//   - DirectCompleter makes one call with a fixed token budget and
//     temperature, without tools.
//
// Neither retries. Every backend failure is returned wrapped in
// ErrGenerationFailed.
package agent

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianQA/services/testgen/prompt"
)

// Strategy names.
const (
	StrategyAgentic = "agentic"
	StrategyDirect  = "direct"
	StrategyAuto    = "auto"
)

const (
	// MaxTurnsCap is the hard limit on agentic turns.
	MaxTurnsCap = 10

	// DirectMaxTokens is the default token budget of a completion call.
	DirectMaxTokens = 16000

	// DirectTemperature is the default sampling temperature of the direct
	// strategy.
	DirectTemperature = 0.7
)

var tracer = otel.Tracer("aleutianqa.agent")

// Options tune one completion call.
type Options struct {
	// MaxTurns caps the agentic loop. Zero or anything above MaxTurnsCap
	// means MaxTurnsCap. Ignored by the direct strategy.
	MaxTurns int

	// MaxTokens is the per-call token budget. Zero means DirectMaxTokens.
	MaxTokens int

	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64
}

// Completion is the raw text produced by a strategy plus bookkeeping.
type Completion struct {
	// Text is the model output, possibly empty.
	Text string

	// Strategy names the strategy that produced Text.
	Strategy string

	// Turns is the number of backend round-trips.
	Turns int

	// ToolInvocations counts tool calls by tool name.
	ToolInvocations map[string]int

	// InputTokens and OutputTokens sum the usage of every turn.
	InputTokens  int
	OutputTokens int

	// FallbackFrom names the strategy that failed before this one ran, or
	// "" when the first strategy answered.
	FallbackFrom string
}

// Completer asks the backend for test cases.
type Completer interface {
	// Complete sends payload to the backend and returns its raw answer.
	//
	// Inputs:
	//   ctx - Forwarded to every backend call
	//   payload - The rendered prompt
	//   opts - Turn and token limits
	//
	// Outputs:
	//   *Completion - The raw text and bookkeeping
	//   error - Wraps ErrGenerationFailed on any backend failure
	Complete(ctx context.Context, payload prompt.Payload, opts Options) (*Completion, error)

	// Strategy returns the strategy name.
	Strategy() string
}

func (o Options) turns() int {
	if o.MaxTurns <= 0 || o.MaxTurns > MaxTurnsCap {
		return MaxTurnsCap
	}
	return o.MaxTurns
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return DirectMaxTokens
	}
	return o.MaxTokens
}
