// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNoInputSource is returned when a generation request carries neither an
// issue reference nor manual input.
var ErrNoInputSource = errors.New("either jira_issue or manual_input must be provided")

// =============================================================================
// Shared Validator Instance
// =============================================================================

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("testtype", validateTestType)
}

// validateTestType accepts only known TestCaseType values.
func validateTestType(fl validator.FieldLevel) bool {
	_, ok := ParseTestCaseType(fl.Field().String())
	return ok
}

// =============================================================================
// Generation Request
// =============================================================================

// JiraIssueInput references an issue in the tracker.
type JiraIssueInput struct {
	IssueKey string `json:"issue_key" validate:"required,max=64"`
}

// ManualInput carries a feature description typed in by the caller.
type ManualInput struct {
	Title              string   `json:"title" validate:"required,max=500"`
	Description        string   `json:"description" validate:"required,max=65536"`
	AcceptanceCriteria []string `json:"acceptance_criteria" validate:"required,max=100"`
}

// GenerationRequest is the body of POST /api/v1/generate-test-cases.
//
// Exactly one source is used: when both JiraIssue and ManualInput are set,
// JiraIssue wins.
type GenerationRequest struct {
	JiraIssue            *JiraIssueInput `json:"jira_issue,omitempty"`
	ManualInput          *ManualInput    `json:"manual_input,omitempty"`
	TestTypes            []TestCaseType  `json:"test_types,omitempty" validate:"max=5,dive,testtype"`
	IncludeEdgeCases     *bool           `json:"include_edge_cases,omitempty"`
	IncludeNegativeTests *bool           `json:"include_negative_tests,omitempty"`
}

// Validate checks field constraints and that an input source is present.
//
// Call it after binding the JSON body.
func (r *GenerationRequest) Validate() error {
	if r.JiraIssue == nil && r.ManualInput == nil {
		return ErrNoInputSource
	}
	return requestValidate.Struct(r)
}

// EdgeCases returns IncludeEdgeCases, defaulting to true.
func (r *GenerationRequest) EdgeCases() bool {
	return r.IncludeEdgeCases == nil || *r.IncludeEdgeCases
}

// NegativeTests returns IncludeNegativeTests, defaulting to true.
func (r *GenerationRequest) NegativeTests() bool {
	return r.IncludeNegativeTests == nil || *r.IncludeNegativeTests
}

// FromManual builds the suite request for manual input.
func (r *GenerationRequest) FromManual() TestSuiteRequest {
	return TestSuiteRequest{
		Title:                r.ManualInput.Title,
		Description:          r.ManualInput.Description,
		AcceptanceCriteria:   r.ManualInput.AcceptanceCriteria,
		TestTypes:            r.TestTypes,
		IncludeEdgeCases:     r.EdgeCases(),
		IncludeNegativeTests: r.NegativeTests(),
	}
}

// FromIssue builds the suite request for an issue fetched from the tracker.
func (r *GenerationRequest) FromIssue(issue *Issue) TestSuiteRequest {
	return TestSuiteRequest{
		IssueKey:             issue.Key,
		Title:                issue.Summary,
		Description:          issue.Description,
		AcceptanceCriteria:   issue.AcceptanceCriteria,
		TestTypes:            r.TestTypes,
		IncludeEdgeCases:     r.EdgeCases(),
		IncludeNegativeTests: r.NegativeTests(),
	}
}

// =============================================================================
// Suite Request
// =============================================================================

// TestSuiteRequest is the input of one generation call. Treat it as
// immutable once built.
type TestSuiteRequest struct {
	IssueKey             string
	Title                string
	Description          string
	AcceptanceCriteria   []string
	TestTypes            []TestCaseType
	IncludeEdgeCases     bool
	IncludeNegativeTests bool
}

// ResolvedTestTypes returns the requested types lowercased and deduplicated
// in first-seen order. An empty set resolves to {functional}.
func (r TestSuiteRequest) ResolvedTestTypes() []TestCaseType {
	seen := make(map[TestCaseType]bool, len(r.TestTypes))
	out := make([]TestCaseType, 0, len(r.TestTypes))
	for _, t := range r.TestTypes {
		t = TestCaseType(strings.ToLower(string(t)))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return []TestCaseType{TestTypeFunctional}
	}
	return out
}

// =============================================================================
// Issue Tracker
// =============================================================================

// Issue is the subset of a tracker issue the generator consumes.
type Issue struct {
	Key                string   `json:"key"`
	Summary            string   `json:"summary"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	IssueType          string   `json:"issue_type"`
	Status             string   `json:"status"`
	Priority           string   `json:"priority"`
}

// CreateTestIssueRequest is the body of POST /api/v1/jira/test-cases.
type CreateTestIssueRequest struct {
	ProjectKey     string `json:"project_key" validate:"required,max=32"`
	Summary        string `json:"summary" validate:"required,max=255"`
	Description    string `json:"description" validate:"max=65536"`
	ParentIssueKey string `json:"parent_issue_key,omitempty" validate:"omitempty,max=64"`
}

// Validate checks field constraints.
func (r *CreateTestIssueRequest) Validate() error {
	return requestValidate.Struct(r)
}

// CreateTestIssueResponse reports the key of the created issue.
type CreateTestIssueResponse struct {
	Key string `json:"key"`
}
