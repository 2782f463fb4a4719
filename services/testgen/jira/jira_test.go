// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package jira

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
	"github.com/AleutianAI/AleutianQA/services/testgen/observability"
)

// =============================================================================
// Acceptance Criteria Extraction
// =============================================================================

func TestExtractAcceptanceCriteria(t *testing.T) {
	tests := []struct {
		name        string
		custom      any
		description string
		want        []string
	}{
		{
			name:   "custom field string",
			custom: "  Must log in  ",
			want:   []string{"Must log in"},
		},
		{
			name:   "custom field list",
			custom: []any{"One", "", "Two", 3.0},
			want:   []string{"One", "Two"},
		},
		{
			name:        "custom field wins over description",
			custom:      "From field",
			description: "Acceptance Criteria:\n- From description",
			want:        []string{"From field"},
		},
		{
			name:        "description section with bullets",
			description: "Users reset passwords.\n\nAcceptance Criteria:\n* Email Is Sent\n- Link expires in 1h\n• Old password stops working\n-\n\nNotes: none",
			want:        []string{"Email Is Sent", "Link expires in 1h", "Old password stops working"},
		},
		{
			name:        "criteria on the marker line",
			description: "AC: works offline",
			want:        []string{"works offline"},
		},
		{
			name:        "markers tried in order",
			description: "Criteria: second\n\nAcceptance: first",
			want:        []string{"first"},
		},
		{
			name:        "crlf line endings",
			description: "Acceptance Criteria:\r\n- A\r\n- B\r\n\r\nmore",
			want:        []string{"A", "B"},
		},
		{
			name:        "marker inside a word",
			description: "Color lilac: purple",
			want:        []string{"purple"},
		},
		{
			name:        "section ends at the next marker",
			description: "Acceptance Criteria:\n- A\n- B\nacceptance criteria: C",
			want:        []string{"A", "B"},
		},
		{
			name:        "no marker",
			description: "Just a plain description.",
			want:        []string{NoCriteriaPlaceholder},
		},
		{
			name:        "marker with empty section",
			description: "Acceptance criteria:\n\nlater text",
			want:        []string{NoCriteriaPlaceholder},
		},
		{
			name: "nothing at all",
			want: []string{NoCriteriaPlaceholder},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAcceptanceCriteria(tt.custom, tt.description))
		})
	}
}

// =============================================================================
// Client
// =============================================================================

func newFakeJira(t *testing.T, handler http.HandlerFunc) (*Client, *observability.Metrics) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	client, err := NewClient(Config{
		URL:      server.URL,
		Email:    "qa@example.com",
		APIToken: "token",
		Metrics:  metrics,
	})
	require.NoError(t, err)
	return client, metrics
}

func TestClient_FetchIssue(t *testing.T) {
	client, metrics := newFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/QA-1", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "qa@example.com", user)
		assert.Equal(t, "token", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "10000",
			"key": "QA-1",
			"fields": {
				"summary": "Password reset",
				"description": "Reset by email.\n\nAcceptance Criteria:\n- Email sent\n- Link expires",
				"issuetype": {"name": "Story"},
				"status": {"name": "In Progress"},
				"priority": {"name": "High"}
			}
		}`))
	})

	issue, err := client.FetchIssue(context.Background(), "QA-1")
	require.NoError(t, err)

	assert.Equal(t, &datatypes.Issue{
		Key:                "QA-1",
		Summary:            "Password reset",
		Description:        "Reset by email.\n\nAcceptance Criteria:\n- Email sent\n- Link expires",
		AcceptanceCriteria: []string{"Email sent", "Link expires"},
		IssueType:          "Story",
		Status:             "In Progress",
		Priority:           "High",
	}, issue)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IssueTrackerRequestsTotal.WithLabelValues("fetch", "success")))
}

func TestClient_FetchIssue_CustomFieldAndDefaultPriority(t *testing.T) {
	client, _ := newFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"key": "QA-2",
			"fields": {
				"summary": "Export",
				"description": "",
				"issuetype": {"name": "Task"},
				"status": {"name": "To Do"},
				"customfield_10100": "CSV download works"
			}
		}`))
	})

	issue, err := client.FetchIssue(context.Background(), "QA-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"CSV download works"}, issue.AcceptanceCriteria)
	assert.Equal(t, "Medium", issue.Priority)
}

func TestClient_FetchIssue_NotFound(t *testing.T) {
	client, metrics := newFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist"],"errors":{}}`))
	})

	_, err := client.FetchIssue(context.Background(), "QA-404")
	assert.ErrorIs(t, err, ErrIssueFetchFailed)
	assert.ErrorIs(t, err, ErrIssueNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IssueTrackerRequestsTotal.WithLabelValues("fetch", "not_found")))
}

func TestClient_FetchIssue_ServerError(t *testing.T) {
	client, _ := newFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchIssue(context.Background(), "QA-1")
	assert.ErrorIs(t, err, ErrIssueFetchFailed)
	assert.NotErrorIs(t, err, ErrIssueNotFound)
}

func TestClient_CreateTestIssue(t *testing.T) {
	var body map[string]any
	client, _ := newFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issue", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "10010", "key": "QA-9", "self": "http://jira/rest/api/2/issue/10010"}`))
	})

	key, err := client.CreateTestIssue(context.Background(), datatypes.CreateTestIssueRequest{
		ProjectKey:     "QA",
		Summary:        "Valid login",
		Description:    "Steps...",
		ParentIssueKey: "QA-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "QA-9", key)

	fields := body["fields"].(map[string]any)
	assert.Equal(t, "Valid login", fields["summary"])
	assert.Equal(t, "QA", fields["project"].(map[string]any)["key"])
	assert.Equal(t, "Test", fields["issuetype"].(map[string]any)["name"])
	assert.Equal(t, "QA-1", fields["parent"].(map[string]any)["key"])
}

func TestClient_CreateTestIssue_Error(t *testing.T) {
	client, _ := newFakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorMessages":[],"errors":{"issuetype":"invalid"}}`))
	})

	_, err := client.CreateTestIssue(context.Background(), datatypes.CreateTestIssueRequest{ProjectKey: "QA", Summary: "s"})
	assert.ErrorIs(t, err, ErrIssueCreateFailed)
}

func TestNewClient_NotConfigured(t *testing.T) {
	_, err := NewClient(Config{URL: "https://example.atlassian.net"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
