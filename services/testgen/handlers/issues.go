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
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
)

// HandleGetIssue serves GET /api/v1/jira/issue/:issueKey, a debugging view
// of what the generator would read from Jira.
func HandleGetIssue(tracker IssueTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracker == nil {
			abortWithError(c, http.StatusServiceUnavailable, errNoTracker)
			return
		}
		key := strings.TrimSpace(c.Param("issueKey"))
		if key == "" {
			abortWithError(c, http.StatusBadRequest, errors.New("issue key is required"))
			return
		}
		issue, err := tracker.FetchIssue(c.Request.Context(), key)
		if err != nil {
			abortWithError(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusOK, issue)
	}
}

// HandleCreateTestIssue serves POST /api/v1/jira/test-cases, filing one
// test issue and returning its key with 201.
func HandleCreateTestIssue(tracker IssueTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracker == nil {
			abortWithError(c, http.StatusServiceUnavailable, errNoTracker)
			return
		}
		var req datatypes.CreateTestIssueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if err := req.Validate(); err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}

		key, err := tracker.CreateTestIssue(c.Request.Context(), req)
		if err != nil {
			abortWithError(c, statusFor(err), err)
			return
		}
		c.JSON(http.StatusCreated, datatypes.CreateTestIssueResponse{Key: key})
	}
}
