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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianQA/services/llm"
	"github.com/AleutianAI/AleutianQA/services/testgen/prompt"
)

// toolHint is appended to the system prompt when tools are available.
const toolHint = `

You have two tools. Call validate_test_case on a draft test case to see which required fields are still missing. Call structure_test_cases to wrap your final list into the output envelope. When you are done, answer with the JSON object only.`

// AgenticCompleter runs a bounded tool-using loop.
//
// # Description
//
// Each turn sends the whole conversation plus the tool declarations. When
// the model answers with tool calls they are executed in order and their
// results appended as the next message. The loop stops at the first turn
// without tool calls or after Options.MaxTurns turns (never more than
// MaxTurnsCap).
//
// # Limitations
//
//   - Turns are sequential. There is no early exit besides the turn cap and
//     ctx.
//   - A failing or unknown tool is reported back to the model as an error
//     result. It does not end the loop.
//
// # Thread Safety
//
// AgenticCompleter holds no per-call state and is safe for concurrent use.
type AgenticCompleter struct {
	client   llm.Client
	registry *Registry
}

// NewAgenticCompleter creates a tool-loop completer. A nil registry means
// DefaultRegistry.
func NewAgenticCompleter(client llm.Client, registry *Registry) (*AgenticCompleter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &AgenticCompleter{client: client, registry: registry}, nil
}

// Strategy implements Completer.
func (a *AgenticCompleter) Strategy() string { return StrategyAgentic }

// Complete implements Completer.
func (a *AgenticCompleter) Complete(ctx context.Context, payload prompt.Payload, opts Options) (*Completion, error) {
	ctx, span := tracer.Start(ctx, "AgenticCompleter.Complete")
	defer span.End()

	maxTurns := opts.turns()
	tools := a.registry.Definitions()
	messages := []llm.Message{{Role: llm.RoleUser, Content: payload.User}}

	out := &Completion{
		Strategy:        StrategyAgentic,
		ToolInvocations: make(map[string]int, len(tools)),
	}
	var text strings.Builder

	for out.Turns < maxTurns {
		out.Turns++

		resp, err := a.client.Complete(ctx, &llm.Request{
			SystemPrompt: payload.System + toolHint,
			Messages:     messages,
			Tools:        tools,
			MaxTokens:    opts.maxTokens(),
			Temperature:  opts.Temperature,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "completion failed")
			slog.Error("Agent turn failed", "turn", out.Turns, "backend", a.client.Name(), "error", err)
			return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
		out.InputTokens += resp.InputTokens
		out.OutputTokens += resp.OutputTokens

		if resp.Content != "" {
			text.WriteString(resp.Content)
			text.WriteString("\n")
		}
		if !resp.HasToolCalls() {
			break
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		messages = append(messages, llm.Message{
			Role:        llm.RoleTool,
			ToolResults: a.runTools(ctx, resp.ToolCalls, out.ToolInvocations),
		})

		if out.Turns == maxTurns {
			slog.Warn("Agent reached turn limit with pending tool calls", "max_turns", maxTurns)
		}
	}

	out.Text = text.String()
	span.SetAttributes(
		attribute.Int("agent.turns", out.Turns),
		attribute.Int("agent.output_length", len(out.Text)),
	)
	slog.Info("Agent loop finished",
		"backend", a.client.Name(),
		"turns", out.Turns,
		"tool_calls", sumCounts(out.ToolInvocations),
		"output_length", len(out.Text))
	return out, nil
}

// runTools executes calls in order and records them in counts.
func (a *AgenticCompleter) runTools(ctx context.Context, calls []llm.ToolCall, counts map[string]int) []llm.ToolCallResult {
	results := make([]llm.ToolCallResult, 0, len(calls))
	for _, call := range calls {
		counts[call.Name]++

		result := llm.ToolCallResult{ToolCallID: call.ID, Name: call.Name}
		content, err := a.registry.Execute(ctx, call.Name, json.RawMessage(call.Arguments))
		if err != nil {
			slog.Warn("Tool call failed", "tool", call.Name, "error", err)
			result.Content = err.Error()
			result.IsError = true
		} else {
			result.Content = content
		}
		results = append(results, result)
	}
	return results
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

var _ Completer = (*AgenticCompleter)(nil)
