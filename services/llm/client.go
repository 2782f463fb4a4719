// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the text-completion backends used by the test case
// generator.
//
// Every backend implements Client. A request carries a system instruction,
// the conversation so far and, optionally, tool declarations the model may
// invoke. A response carries the text the model produced plus any tool calls
// it wants executed before it continues.
//
// Thread Safety:
//
//	All clients in this package are safe for concurrent use.
package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
)

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Stop reasons normalized across backends.
const (
	StopReasonEnd       = "end"
	StopReasonToolUse   = "tool_use"
	StopReasonMaxTokens = "max_tokens"
)

var tracer = otel.Tracer("aleutianqa.llm")

// Client defines the interface for LLM interactions.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a request to the model and returns its response.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout
	//   request - The completion request
	//
	// Outputs:
	//   *Response - The model response
	//   error - Non-nil if the transport or the backend failed
	Complete(ctx context.Context, request *Request) (*Response, error)

	// Name returns the provider name (e.g., "anthropic", "openai").
	Name() string

	// Model returns the model being used.
	Model() string
}

// ToolDefinition declares a tool the model may call.
//
// InputSchema is a JSON Schema object describing the tool arguments.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request represents a completion request to the model.
type Request struct {
	// SystemPrompt is the system message.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// Tools defines available tools. Empty means plain completion.
	Tools []ToolDefinition `json:"tools,omitempty"`

	// MaxTokens limits the response length. Zero uses the backend default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. Nil uses the backend default.
	Temperature *float64 `json:"temperature,omitempty"`
}

// Message represents a conversation message.
type Message struct {
	// Role is "user", "assistant" or "tool".
	Role string `json:"role"`

	// Content is the text content.
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool invocations (assistant messages only).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolResults contains tool outputs (tool messages only).
	ToolResults []ToolCallResult `json:"tool_results,omitempty"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	// ID is a unique identifier for this call.
	ID string `json:"id"`

	// Name is the tool name.
	Name string `json:"name"`

	// Arguments are the tool arguments as a JSON object.
	Arguments string `json:"arguments"`
}

// ToolCallResult contains the result of a tool call.
type ToolCallResult struct {
	// ToolCallID links back to the tool call.
	ToolCallID string `json:"tool_call_id"`

	// Name is the tool that produced the result.
	Name string `json:"name,omitempty"`

	// Content is the result content.
	Content string `json:"content"`

	// IsError indicates if this is an error result.
	IsError bool `json:"is_error,omitempty"`
}

// Response represents a model response.
type Response struct {
	// Content is the text response.
	Content string `json:"content"`

	// ToolCalls contains any tool calls the model wants to make.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// StopReason indicates why generation stopped.
	StopReason string `json:"stop_reason"`

	// InputTokens is the input token count.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the output token count.
	OutputTokens int `json:"output_tokens"`

	// Duration is how long the request took.
	Duration time.Duration `json:"duration"`

	// Model is the model that generated this response.
	Model string `json:"model,omitempty"`
}

// HasToolCalls returns true if the response contains tool calls.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Float64 returns a pointer to v. Handy for Request.Temperature.
func Float64(v float64) *float64 {
	return &v
}
