// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP endpoints of the test case generator.
//
// Every error response has the shape {"error": "<message>"}.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianQA/services/testgen/agent"
	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
	"github.com/AleutianAI/AleutianQA/services/testgen/jira"
	"github.com/AleutianAI/AleutianQA/services/testgen/mapper"
)

// Service identity reported by the root and health endpoints.
const (
	ServiceName        = "test-case-generator"
	ServiceDisplayName = "Test Case Generator"
	ServiceVersion     = "1.0.0"
)

// Generator turns a suite request into a test suite.
type Generator interface {
	Generate(ctx context.Context, req datatypes.TestSuiteRequest) (*datatypes.TestSuiteResponse, error)
}

// IssueTracker reads and files issues.
type IssueTracker interface {
	FetchIssue(ctx context.Context, key string) (*datatypes.Issue, error)
	CreateTestIssue(ctx context.Context, req datatypes.CreateTestIssueRequest) (string, error)
}

// errNoTracker is reported when an issue endpoint is hit without Jira.
var errNoTracker = jira.ErrNotConfigured

// HandleRoot describes the service and its endpoints.
func HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": ServiceDisplayName,
		"version": ServiceVersion,
		"status":  "running",
		"endpoints": gin.H{
			"health":              "/api/v1/health",
			"generate_test_cases": "/api/v1/generate-test-cases",
			"get_jira_issue":      "/api/v1/jira/issue/{issue_key}",
			"create_test_issue":   "/api/v1/jira/test-cases",
			"metrics":             "/metrics",
		},
	})
}

// HandleHealth reports liveness.
func HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": ServiceName,
		"version": ServiceVersion,
	})
}

// statusFor maps a pipeline or tracker error to an HTTP status.
//
// # Outputs
//
//   - int: 404 for missing issues, 422 for unusable model output, 502 for
//     upstream failures, 503 when Jira is not configured, 504 on timeout,
//     500 otherwise.
func statusFor(err error) int {
	switch {
	case errors.Is(err, jira.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, jira.ErrIssueNotFound):
		return http.StatusNotFound
	case errors.Is(err, mapper.ErrMapping):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, agent.ErrGenerationFailed),
		errors.Is(err, jira.ErrIssueFetchFailed),
		errors.Is(err, jira.ErrIssueCreateFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
