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
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianQA/services/llm"
	"github.com/AleutianAI/AleutianQA/services/testgen/prompt"
)

// DirectCompleter makes a single request/response call.
type DirectCompleter struct {
	client llm.Client
}

// NewDirectCompleter creates a single-shot completer.
func NewDirectCompleter(client llm.Client) (*DirectCompleter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &DirectCompleter{client: client}, nil
}

// Strategy implements Completer.
func (d *DirectCompleter) Strategy() string { return StrategyDirect }

// Complete implements Completer.
func (d *DirectCompleter) Complete(ctx context.Context, payload prompt.Payload, opts Options) (*Completion, error) {
	ctx, span := tracer.Start(ctx, "DirectCompleter.Complete")
	defer span.End()

	temperature := opts.Temperature
	if temperature == nil {
		temperature = llm.Float64(DirectTemperature)
	}

	resp, err := d.client.Complete(ctx, &llm.Request{
		SystemPrompt: payload.System,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: payload.User}},
		MaxTokens:    opts.maxTokens(),
		Temperature:  temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		slog.Error("Direct completion failed", "backend", d.client.Name(), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	span.SetAttributes(attribute.Int("llm.tokens.output", resp.OutputTokens))
	slog.Info("Direct completion finished",
		"backend", d.client.Name(),
		"model", d.client.Model(),
		"stop_reason", resp.StopReason,
		"output_tokens", resp.OutputTokens)

	return &Completion{
		Text:            resp.Content,
		Strategy:        StrategyDirect,
		Turns:           1,
		ToolInvocations: map[string]int{},
		InputTokens:     resp.InputTokens,
		OutputTokens:    resp.OutputTokens,
	}, nil
}

var _ Completer = (*DirectCompleter)(nil)
