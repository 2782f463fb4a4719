// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the test case generator.
//
// This file contains the strict test suite schema returned to API consumers
// and the loosely-typed suite produced by the response normalizer.
package datatypes

import "strings"

// =============================================================================
// Enumerations
// =============================================================================

// TestCaseType is the kind of test a case describes.
type TestCaseType string

const (
	TestTypeFunctional  TestCaseType = "functional"
	TestTypeIntegration TestCaseType = "integration"
	TestTypeE2E         TestCaseType = "e2e"
	TestTypeUnit        TestCaseType = "unit"
	TestTypeAPI         TestCaseType = "api"
)

// AllTestCaseTypes lists every valid TestCaseType in declaration order.
var AllTestCaseTypes = []TestCaseType{
	TestTypeFunctional,
	TestTypeIntegration,
	TestTypeE2E,
	TestTypeUnit,
	TestTypeAPI,
}

// ParseTestCaseType resolves s case-insensitively.
func ParseTestCaseType(s string) (TestCaseType, bool) {
	t := TestCaseType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTestCaseTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Priority ranks how important a test case is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority resolves s case-insensitively.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, true
	default:
		return "", false
	}
}

// =============================================================================
// Strict Schema
// =============================================================================

// TestStep is a single step of a test case.
type TestStep struct {
	StepNumber     int    `json:"step_number"`
	Action         string `json:"action"`
	ExpectedResult string `json:"expected_result"`
}

// TestCase is a fully-populated test case.
//
// Title, Description, Type and Priority are never empty in a TestCase that
// leaves the mapper. Slices are never nil so they encode as [] rather than
// null.
type TestCase struct {
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Type            TestCaseType `json:"type"`
	Priority        Priority     `json:"priority"`
	Preconditions   []string     `json:"preconditions"`
	Steps           []TestStep   `json:"steps"`
	ExpectedOutcome string       `json:"expected_outcome"`
	Tags            []string     `json:"tags"`
}

// TestSuiteResponse is the result of one generation call.
type TestSuiteResponse struct {
	IssueKey        string         `json:"issue_key,omitempty"`
	FeatureTitle    string         `json:"feature_title"`
	TestCases       []TestCase     `json:"test_cases"`
	CoverageSummary string         `json:"coverage_summary"`
	Metadata        map[string]any `json:"generation_metadata"`
}

// Degraded reports whether the suite came from a diagnostic empty suite
// rather than a parsed model answer.
func (r *TestSuiteResponse) Degraded() bool {
	if r == nil || len(r.TestCases) > 0 {
		return false
	}
	_, hasErr := r.Metadata[KeyError]
	_, hasRaw := r.Metadata[KeyRawOutput]
	return hasErr || hasRaw || r.CoverageSummary == MarkerInvalidStructure
}

// =============================================================================
// Loosely-Typed Suite
// =============================================================================

// Keys of a NormalizedSuite.
const (
	KeyTestCases       = "test_cases"
	KeyCoverageSummary = "coverage_summary"
	KeyTotalCount      = "total_count"
	KeyError           = "error"
	KeyRawOutput       = "raw_output"
)

// Diagnostic coverage summaries of the degraded suites.
const (
	MarkerNoStructuredOutput = "Agent completed but no structured output found"
	MarkerParseFailure       = "Failed to parse agent output"
	MarkerInvalidStructure   = "Invalid structure"
)

// NormalizedSuite is the decoded model answer before strict mapping.
//
// It always carries KeyTestCases. Any other content is whatever the model
// emitted, untouched.
type NormalizedSuite map[string]any

// TestCases returns the raw test case list, or nil when it is not a list.
func (s NormalizedSuite) TestCases() []any {
	cases, _ := s[KeyTestCases].([]any)
	return cases
}

// CoverageSummary returns the coverage summary, or "" when absent.
func (s NormalizedSuite) CoverageSummary() string {
	summary, _ := s[KeyCoverageSummary].(string)
	return summary
}
