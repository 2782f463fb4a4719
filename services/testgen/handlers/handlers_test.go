// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianQA/services/llm"
	"github.com/AleutianAI/AleutianQA/services/testgen/agent"
	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
	"github.com/AleutianAI/AleutianQA/services/testgen/jira"
	"github.com/AleutianAI/AleutianQA/services/testgen/mapper"
	"github.com/AleutianAI/AleutianQA/services/testgen/pipeline"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	got  []datatypes.TestSuiteRequest
	resp *datatypes.TestSuiteResponse
	err  error
	wait bool
}

func (f *fakeGenerator) Generate(ctx context.Context, req datatypes.TestSuiteRequest) (*datatypes.TestSuiteResponse, error) {
	f.got = append(f.got, req)
	if f.wait {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", agent.ErrGenerationFailed, ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &datatypes.TestSuiteResponse{
		IssueKey:     req.IssueKey,
		FeatureTitle: req.Title,
		TestCases:    []datatypes.TestCase{},
		Metadata:     map[string]any{},
	}, nil
}

type fakeTracker struct {
	issues  map[string]*datatypes.Issue
	created []datatypes.CreateTestIssueRequest
	err     error
}

func (f *fakeTracker) FetchIssue(_ context.Context, key string) (*datatypes.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	issue, ok := f.issues[key]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", jira.ErrIssueFetchFailed, jira.ErrIssueNotFound, key)
	}
	return issue, nil
}

func (f *fakeTracker) CreateTestIssue(_ context.Context, req datatypes.CreateTestIssueRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, req)
	return fmt.Sprintf("%s-%d", req.ProjectKey, 100+len(f.created)), nil
}

func newTracker() *fakeTracker {
	return &fakeTracker{issues: map[string]*datatypes.Issue{
		"QA-1": {
			Key:                "QA-1",
			Summary:            "Password reset",
			Description:        "Reset by email",
			AcceptanceCriteria: []string{"Email sent"},
			Priority:           "Medium",
		},
	}}
}

func newRouter(gen Generator, tracker IssueTracker, timeout time.Duration) *gin.Engine {
	r := gin.New()
	r.GET("/", HandleRoot)
	r.GET("/api/v1/health", HandleHealth)
	r.POST("/api/v1/generate-test-cases", HandleGenerateTestCases(gen, tracker, timeout))
	r.GET("/api/v1/jira/issue/:issueKey", HandleGetIssue(tracker))
	r.POST("/api/v1/jira/test-cases", HandleCreateTestIssue(tracker))
	return r
}

func do(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

// =============================================================================
// Root and Health
// =============================================================================

func TestHandleRoot(t *testing.T) {
	w, body := do(t, newRouter(&fakeGenerator{}, nil, 0), http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Test Case Generator", body["service"])
	assert.Equal(t, "running", body["status"])
	endpoints := body["endpoints"].(map[string]any)
	assert.Equal(t, "/api/v1/generate-test-cases", endpoints["generate_test_cases"])
}

func TestHandleHealth(t *testing.T) {
	w, body := do(t, newRouter(&fakeGenerator{}, nil, 0), http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{
		"status":  "healthy",
		"service": "test-case-generator",
		"version": "1.0.0",
	}, body)
}

// =============================================================================
// Generate
// =============================================================================

func TestGenerate_ManualInput(t *testing.T) {
	gen := &fakeGenerator{}
	router := newRouter(gen, nil, 0)

	w, body := do(t, router, http.MethodPost, "/api/v1/generate-test-cases", `{
		"manual_input": {"title": "Login", "description": "Users sign in", "acceptance_criteria": ["Works"]},
		"test_types": ["functional", "api"],
		"include_edge_cases": false
	}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Login", body["feature_title"])
	assert.NotContains(t, body, "issue_key")

	require.Len(t, gen.got, 1)
	got := gen.got[0]
	assert.Equal(t, "Users sign in", got.Description)
	assert.Equal(t, []string{"Works"}, got.AcceptanceCriteria)
	assert.Equal(t, []datatypes.TestCaseType{datatypes.TestTypeFunctional, datatypes.TestTypeAPI}, got.TestTypes)
	assert.False(t, got.IncludeEdgeCases)
	assert.True(t, got.IncludeNegativeTests)
}

func TestGenerate_JiraTakesPrecedence(t *testing.T) {
	gen := &fakeGenerator{}
	router := newRouter(gen, newTracker(), 0)

	w, body := do(t, router, http.MethodPost, "/api/v1/generate-test-cases", `{
		"jira_issue": {"issue_key": "QA-1"},
		"manual_input": {"title": "Ignored", "description": "Ignored", "acceptance_criteria": []}
	}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "QA-1", body["issue_key"])
	require.Len(t, gen.got, 1)
	assert.Equal(t, "Password reset", gen.got[0].Title)
	assert.Equal(t, []string{"Email sent"}, gen.got[0].AcceptanceCriteria)
}

func TestGenerate_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{"manual_input":`},
		{name: "no source", body: `{"test_types": ["functional"]}`},
		{name: "empty title", body: `{"manual_input": {"title": "", "description": "d", "acceptance_criteria": []}}`},
		{name: "unknown test type", body: `{"manual_input": {"title": "t", "description": "d", "acceptance_criteria": []}, "test_types": ["smoke"]}`},
		{name: "empty issue key", body: `{"jira_issue": {"issue_key": ""}}`},
		{name: "missing acceptance criteria", body: `{"manual_input": {"title": "t", "description": "d"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			w, body := do(t, newRouter(gen, newTracker(), 0), http.MethodPost, "/api/v1/generate-test-cases", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, gen.got)
		})
	}
}

func TestGenerate_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name    string
		genErr  error
		tracker IssueTracker
		body    string
		status  int
	}{
		{
			name:   "generation failure",
			genErr: fmt.Errorf("%w: %w", agent.ErrGenerationFailed, errors.New("529 overloaded")),
			body:   `{"manual_input": {"title": "t", "description": "d", "acceptance_criteria": []}}`,
			status: http.StatusBadGateway,
		},
		{
			name:   "mapping failure",
			genErr: &mapper.MissingFieldError{Field: "title", CaseIndex: 0, StepIndex: -1},
			body:   `{"manual_input": {"title": "t", "description": "d", "acceptance_criteria": []}}`,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "unexpected",
			genErr: errors.New("boom"),
			body:   `{"manual_input": {"title": "t", "description": "d", "acceptance_criteria": []}}`,
			status: http.StatusInternalServerError,
		},
		{
			name:    "issue not found",
			tracker: newTracker(),
			body:    `{"jira_issue": {"issue_key": "QA-404"}}`,
			status:  http.StatusNotFound,
		},
		{
			name:    "tracker down",
			tracker: &fakeTracker{err: fmt.Errorf("%w: %w", jira.ErrIssueFetchFailed, errors.New("dial tcp"))},
			body:    `{"jira_issue": {"issue_key": "QA-1"}}`,
			status:  http.StatusBadGateway,
		},
		{
			name:   "jira not configured",
			body:   `{"jira_issue": {"issue_key": "QA-1"}}`,
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&fakeGenerator{err: tt.genErr}, tt.tracker, 0)
			w, body := do(t, router, http.MethodPost, "/api/v1/generate-test-cases", tt.body)

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	router := newRouter(&fakeGenerator{wait: true}, nil, 10*time.Millisecond)

	w, body := do(t, router, http.MethodPost, "/api/v1/generate-test-cases",
		`{"manual_input": {"title": "t", "description": "d", "acceptance_criteria": []}}`)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, body["error"], "deadline exceeded")
}

func TestGenerate_EndToEndWithMockBackend(t *testing.T) {
	mock := llm.NewMockClient().QueueFinalResponse(`Sure!
{"test_cases": [{"title": "Login works", "description": "Happy path", "type": "functional", "priority": "high",
  "steps": [{"step_number": 1, "action": "Sign in", "expected_result": "Dashboard"}]}],
 "coverage_summary": "happy path"}`)
	completer, err := agent.NewCompleter(agent.StrategyDirect, mock)
	require.NoError(t, err)
	gen, err := pipeline.NewGenerator(pipeline.Config{Completer: completer, Model: mock.Model()})
	require.NoError(t, err)

	w, body := do(t, newRouter(gen, nil, 0), http.MethodPost, "/api/v1/generate-test-cases",
		`{"manual_input": {"title": "Login", "description": "Sign in", "acceptance_criteria": []}}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cases := body["test_cases"].([]any)
	require.Len(t, cases, 1)
	first := cases[0].(map[string]any)
	assert.Equal(t, "Login works", first["title"])
	steps := first["steps"].([]any)
	assert.Equal(t, "Dashboard", steps[0].(map[string]any)["expected_result"])
	assert.Equal(t, "happy path", body["coverage_summary"])
	meta := body["generation_metadata"].(map[string]any)
	assert.Equal(t, 1.0, meta["total_test_cases_generated"])
}

func TestGenerate_DegradedIsOK(t *testing.T) {
	mock := llm.NewMockClient().QueueFinalResponse("no json here")
	completer, err := agent.NewCompleter(agent.StrategyDirect, mock)
	require.NoError(t, err)
	gen, err := pipeline.NewGenerator(pipeline.Config{Completer: completer})
	require.NoError(t, err)

	w, body := do(t, newRouter(gen, nil, 0), http.MethodPost, "/api/v1/generate-test-cases",
		`{"manual_input": {"title": "Login", "description": "Sign in", "acceptance_criteria": []}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["test_cases"])
	assert.Equal(t, datatypes.MarkerNoStructuredOutput, body["coverage_summary"])
}

func TestGenerate_EmptyReplyIsOK(t *testing.T) {
	mock := llm.NewMockClient().QueueResponse(&llm.Response{Content: "", StopReason: llm.StopReasonEnd})
	completer, err := agent.NewCompleter(agent.StrategyAuto, mock)
	require.NoError(t, err)
	gen, err := pipeline.NewGenerator(pipeline.Config{Completer: completer})
	require.NoError(t, err)

	w, body := do(t, newRouter(gen, nil, 0), http.MethodPost, "/api/v1/generate-test-cases",
		`{"manual_input": {"title": "Login", "description": "Sign in", "acceptance_criteria": []}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["test_cases"])
	assert.Equal(t, datatypes.MarkerNoStructuredOutput, body["coverage_summary"])
	assert.Equal(t, 1, mock.CallCount(), "no fallback on an empty reply")

	meta, ok := body["generation_metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, agent.StrategyAgentic, meta["strategy"])
	assert.NotContains(t, meta, "fallback_from")
}

// =============================================================================
// Issues
// =============================================================================

func TestGetIssue(t *testing.T) {
	router := newRouter(&fakeGenerator{}, newTracker(), 0)

	w, body := do(t, router, http.MethodGet, "/api/v1/jira/issue/QA-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Password reset", body["summary"])
	assert.Equal(t, []any{"Email sent"}, body["acceptance_criteria"])

	w, _ = do(t, router, http.MethodGet, "/api/v1/jira/issue/QA-404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetIssue_NotConfigured(t *testing.T) {
	w, body := do(t, newRouter(&fakeGenerator{}, nil, 0), http.MethodGet, "/api/v1/jira/issue/QA-1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, jira.ErrNotConfigured.Error(), body["error"])
}

func TestCreateTestIssue(t *testing.T) {
	tracker := newTracker()
	router := newRouter(&fakeGenerator{}, tracker, 0)

	w, body := do(t, router, http.MethodPost, "/api/v1/jira/test-cases",
		`{"project_key": "QA", "summary": "Valid login", "description": "Steps", "parent_issue_key": "QA-1"}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "QA-101", body["key"])
	require.Len(t, tracker.created, 1)
	assert.Equal(t, "QA-1", tracker.created[0].ParentIssueKey)
}

func TestCreateTestIssue_Errors(t *testing.T) {
	w, _ := do(t, newRouter(&fakeGenerator{}, newTracker(), 0), http.MethodPost, "/api/v1/jira/test-cases",
		`{"summary": "no project"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failing := &fakeTracker{err: fmt.Errorf("%w: %w", jira.ErrIssueCreateFailed, errors.New("400"))}
	w, _ = do(t, newRouter(&fakeGenerator{}, failing, 0), http.MethodPost, "/api/v1/jira/test-cases",
		`{"project_key": "QA", "summary": "s"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
