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
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MockClient is a scripted Client for tests and offline runs.
//
// Queued responses are returned in order; once the queue is empty the
// default response is returned.
//
// Thread Safety:
//
//	MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.RWMutex

	name  string
	model string

	responses       []*Response
	defaultResponse *Response
	calls           []CompletionCall
	responseFunc    func(*Request) (*Response, error)
	errorToReturn   error
}

// CompletionCall records a call to Complete.
type CompletionCall struct {
	Request   Request
	Timestamp time.Time
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{
		name:  "mock",
		model: "mock-model",
		defaultResponse: &Response{
			Content:    "Mock response",
			StopReason: StopReasonEnd,
		},
	}
}

// WithModel sets the model name.
func (c *MockClient) WithModel(model string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	return c
}

// WithError configures the client to fail every call.
func (c *MockClient) WithError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorToReturn = err
	return c
}

// WithResponseFunc sets a dynamic response function.
func (c *MockClient) WithResponseFunc(f func(*Request) (*Response, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseFunc = f
	return c
}

// QueueResponse adds a response to the queue.
func (c *MockClient) QueueResponse(response *Response) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	return c
}

// QueueToolCall queues a response that invokes a tool, optionally with
// accompanying text.
func (c *MockClient) QueueToolCall(content, toolName string, arguments map[string]any) *MockClient {
	argsJSON, _ := json.Marshal(arguments)

	c.mu.RLock()
	id := fmt.Sprintf("call_%d", len(c.responses))
	c.mu.RUnlock()

	return c.QueueResponse(&Response{
		Content:    content,
		StopReason: StopReasonToolUse,
		ToolCalls: []ToolCall{{
			ID:        id,
			Name:      toolName,
			Arguments: string(argsJSON),
		}},
	})
}

// QueueFinalResponse queues a text-only response.
func (c *MockClient) QueueFinalResponse(content string) *MockClient {
	return c.QueueResponse(&Response{
		Content:      content,
		StopReason:   StopReasonEnd,
		OutputTokens: len(content) / 4,
	})
}

// SetDefaultResponse sets the response returned when the queue is empty.
func (c *MockClient) SetDefaultResponse(response *Response) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultResponse = response
	return c
}

// Complete implements Client.
func (c *MockClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Snapshot the request: callers keep appending to their message slice.
	snapshot := *request
	snapshot.Messages = append([]Message(nil), request.Messages...)
	c.calls = append(c.calls, CompletionCall{Request: snapshot, Timestamp: time.Now()})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.errorToReturn != nil {
		return nil, c.errorToReturn
	}
	if c.responseFunc != nil {
		return c.responseFunc(request)
	}
	if len(c.responses) > 0 {
		response := *c.responses[0]
		c.responses = c.responses[1:]
		response.Model = c.model
		return &response, nil
	}

	response := *c.defaultResponse
	response.Model = c.model
	return &response, nil
}

// Name implements Client.
func (c *MockClient) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Model implements Client.
func (c *MockClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Calls returns all recorded calls.
func (c *MockClient) Calls() []CompletionCall {
	c.mu.RLock()
	defer c.mu.RUnlock()

	calls := make([]CompletionCall, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// CallCount returns the number of calls made.
func (c *MockClient) CallCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calls)
}

// Verify ensures all queued responses were consumed.
func (c *MockClient) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.responses) > 0 {
		return fmt.Errorf("mock: %d queued responses not consumed", len(c.responses))
	}
	return nil
}

var _ Client = (*MockClient)(nil)
