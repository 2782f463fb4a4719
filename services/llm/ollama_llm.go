// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultOllamaModel = "gpt-oss"

// OllamaConfig configures OllamaClient.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaClient talks to a local Ollama server through /api/chat.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// NewOllamaClient creates an Ollama chat client.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	if cfg.Model == "" {
		slog.Warn("Ollama model not set, defaulting", "model", defaultOllamaModel)
		cfg.Model = defaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", cfg.Model)
	return &OllamaClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		model:      cfg.Model,
	}, nil
}

// Name implements Client.
func (o *OllamaClient) Name() string { return "ollama" }

// Model implements Client.
func (o *OllamaClient) Model() string { return o.model }

// Complete implements Client.
func (o *OllamaClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", o.model),
		attribute.Int("llm.messages", len(request.Messages)),
		attribute.Int("llm.tools", len(request.Tools)),
	)

	options := map[string]any{}
	if request.Temperature != nil {
		options["temperature"] = *request.Temperature
	}
	if request.MaxTokens > 0 {
		options["num_predict"] = request.MaxTokens
	}

	payload := ollamaChatRequest{
		Model:    o.model,
		Messages: toOllamaMessages(request),
		Stream:   false,
		Options:  options,
	}
	for _, tool := range request.Tools {
		payload.Tools = append(payload.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request to Ollama: %w", err)
	}
	chatURL := o.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to send the request to %s: %w", chatURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from Ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound && strings.Contains(string(respBody), "not found") {
			slog.Warn("Ollama model not found", "model", o.model)
			return nil, fmt.Errorf("model '%s' not found. Please run: 'ollama pull %s'", o.model, o.model)
		}
		err := fmt.Errorf("ollama chat failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 512))
		span.RecordError(err)
		span.SetStatus(codes.Error, "non-200 status")
		return nil, err
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse Ollama chat response: %w", err)
	}

	out := &Response{
		Content:      chatResp.Message.Content,
		InputTokens:  chatResp.PromptEvalCount,
		OutputTokens: chatResp.EvalCount,
		Duration:     time.Since(start),
		Model:        chatResp.Model,
		StopReason:   StopReasonEnd,
	}
	// Ollama does not assign call ids; synthesize stable ones per response.
	for i, call := range chatResp.Message.ToolCalls {
		args := string(call.Function.Arguments)
		if args == "" || args == "null" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	if len(out.ToolCalls) > 0 {
		out.StopReason = StopReasonToolUse
	} else if chatResp.DoneReason == "length" {
		out.StopReason = StopReasonMaxTokens
	}

	if out.Content == "" && len(out.ToolCalls) == 0 {
		slog.Warn("Ollama returned an empty response", "stop_reason", out.StopReason)
	}
	return out, nil
}

func toOllamaMessages(request *Request) []ollamaMessage {
	messages := make([]ollamaMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, ollamaMessage{Role: RoleSystem, Content: request.SystemPrompt})
	}
	for _, msg := range request.Messages {
		switch msg.Role {
		case RoleTool:
			for _, result := range msg.ToolResults {
				messages = append(messages, ollamaMessage{
					Role:     RoleTool,
					Content:  result.Content,
					ToolName: result.Name,
				})
			}
		default:
			m := ollamaMessage{Role: msg.Role, Content: msg.Content}
			for _, call := range msg.ToolCalls {
				args := json.RawMessage(call.Arguments)
				if !json.Valid(args) {
					args = json.RawMessage("{}")
				}
				m.ToolCalls = append(m.ToolCalls, ollamaToolCall{
					Function: ollamaFunctionCall{Name: call.Name, Arguments: args},
				})
			}
			messages = append(messages, m)
		}
	}
	return messages
}

var _ Client = (*OllamaClient)(nil)
