// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
	"github.com/AleutianAI/AleutianQA/services/testgen/middleware"
)

// HandleGenerateTestCases serves POST /api/v1/generate-test-cases.
//
// # Description
//
// Binds and validates a GenerationRequest, resolves the feature from Jira
// (when jira_issue is set) or from manual_input, and runs the generator.
// A degraded suite (no cases, diagnostic summary) is still a 200.
//
// # Inputs
//
//   - gen: Generation pipeline. Must not be nil.
//   - tracker: Issue tracker. May be nil, in which case Jira requests get 503.
//   - timeout: Bound on the whole call. Zero disables it.
//
// # Outputs
//
//   - gin.HandlerFunc: 200 with a TestSuiteResponse, or an error status
//     from statusFor (400 for invalid input).
//
// # Thread Safety
//
// Thread-safe. Each request runs its own pipeline.
func HandleGenerateTestCases(gen Generator, tracker IssueTracker, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.GenerationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if err := req.Validate(); err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		var suiteReq datatypes.TestSuiteRequest
		if req.JiraIssue != nil {
			if tracker == nil {
				abortWithError(c, http.StatusServiceUnavailable, errNoTracker)
				return
			}
			slog.Info("Generating test cases for JIRA issue",
				"issue_key", req.JiraIssue.IssueKey,
				"request_id", middleware.GetRequestID(c))
			issue, err := tracker.FetchIssue(ctx, req.JiraIssue.IssueKey)
			if err != nil {
				abortWithError(c, statusFor(err), err)
				return
			}
			suiteReq = req.FromIssue(issue)
		} else {
			slog.Info("Generating test cases from manual input",
				"title", req.ManualInput.Title,
				"request_id", middleware.GetRequestID(c))
			suiteReq = req.FromManual()
		}

		resp, err := gen.Generate(ctx, suiteReq)
		if err != nil {
			slog.Error("Error generating test cases", "error", err, "request_id", middleware.GetRequestID(c))
			abortWithError(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
