// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mapper converts a NormalizedSuite into the strict TestSuiteResponse.
//
// Mapping is all-or-nothing: the first absent or malformed field aborts the
// whole suite with a MissingFieldError or InvalidFieldError and no partial
// list is returned. The input suite is never modified, so mapping the same
// suite twice yields equal responses.
package mapper

import (
	"fmt"
	"math"

	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
)

// Metadata keys set by Map.
const (
	MetaTestTypesRequested = "test_types_requested"
	MetaIncludeEdgeCases   = "include_edge_cases"
	MetaIncludeNegative    = "include_negative_tests"
	MetaTotalGenerated     = "total_test_cases_generated"
)

// Context carries the request data the response echoes back.
type Context struct {
	IssueKey             string
	FeatureTitle         string
	TestTypes            []datatypes.TestCaseType
	IncludeEdgeCases     bool
	IncludeNegativeTests bool
}

// ContextFor builds the mapping context of a suite request.
func ContextFor(req datatypes.TestSuiteRequest) Context {
	return Context{
		IssueKey:             req.IssueKey,
		FeatureTitle:         req.Title,
		TestTypes:            req.ResolvedTestTypes(),
		IncludeEdgeCases:     req.IncludeEdgeCases,
		IncludeNegativeTests: req.IncludeNegativeTests,
	}
}

// Map converts suite into a TestSuiteResponse.
//
// # Description
//
// Test cases are mapped in order. Required fields (title, description,
// type, priority) have no default. Optional fields (preconditions, steps,
// tags, expected_outcome) default to empty. Every step requires
// step_number, action and expected_result. Type and priority are matched
// case-insensitively and stored lowercased; tags are deduplicated in
// first-seen order.
//
// Metadata echoes the request flags and the mapped count. The diagnostic
// error and raw_output of a degraded suite are copied into it.
//
// # Inputs
//
//   - suite: Output of normalize.Normalize.
//   - mctx: Request data to echo.
//
// # Outputs
//
//   - *datatypes.TestSuiteResponse: The strict response.
//   - error: *MissingFieldError or *InvalidFieldError, both matching ErrMapping.
func Map(suite datatypes.NormalizedSuite, mctx Context) (*datatypes.TestSuiteResponse, error) {
	rawCases, err := suiteCases(suite)
	if err != nil {
		return nil, err
	}

	cases := make([]datatypes.TestCase, 0, len(rawCases))
	for i, raw := range rawCases {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, &InvalidFieldError{Field: datatypes.KeyTestCases, CaseIndex: i, StepIndex: -1, Reason: "test case is not an object"}
		}
		tc, err := mapTestCase(obj, i)
		if err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}

	summary, ok := optionalString(suite, datatypes.KeyCoverageSummary)
	if !ok {
		return nil, &InvalidFieldError{Field: datatypes.KeyCoverageSummary, CaseIndex: -1, StepIndex: -1, Reason: "expected a string"}
	}

	return &datatypes.TestSuiteResponse{
		IssueKey:        mctx.IssueKey,
		FeatureTitle:    mctx.FeatureTitle,
		TestCases:       cases,
		CoverageSummary: summary,
		Metadata:        buildMetadata(suite, mctx, len(cases)),
	}, nil
}

func suiteCases(suite datatypes.NormalizedSuite) ([]any, error) {
	value, ok := suite[datatypes.KeyTestCases]
	if !ok {
		return nil, &MissingFieldError{Field: datatypes.KeyTestCases, CaseIndex: -1, StepIndex: -1}
	}
	cases, ok := value.([]any)
	if !ok {
		return nil, &InvalidFieldError{Field: datatypes.KeyTestCases, CaseIndex: -1, StepIndex: -1, Reason: "expected a list"}
	}
	return cases, nil
}

func mapTestCase(obj map[string]any, idx int) (datatypes.TestCase, error) {
	var tc datatypes.TestCase

	required := make(map[string]string, 4)
	for _, field := range []string{"title", "description", "type", "priority"} {
		value, err := requiredString(obj, field, idx, -1)
		if err != nil {
			return tc, err
		}
		required[field] = value
	}

	typ, ok := datatypes.ParseTestCaseType(required["type"])
	if !ok {
		return tc, &InvalidFieldError{Field: "type", CaseIndex: idx, StepIndex: -1, Reason: fmt.Sprintf("unknown test type %q", required["type"])}
	}
	priority, ok := datatypes.ParsePriority(required["priority"])
	if !ok {
		return tc, &InvalidFieldError{Field: "priority", CaseIndex: idx, StepIndex: -1, Reason: fmt.Sprintf("unknown priority %q", required["priority"])}
	}

	preconditions, err := stringList(obj, "preconditions", idx)
	if err != nil {
		return tc, err
	}
	tags, err := stringList(obj, "tags", idx)
	if err != nil {
		return tc, err
	}
	steps, err := mapSteps(obj, idx)
	if err != nil {
		return tc, err
	}
	outcome, ok := optionalString(obj, "expected_outcome")
	if !ok {
		return tc, &InvalidFieldError{Field: "expected_outcome", CaseIndex: idx, StepIndex: -1, Reason: "expected a string"}
	}

	return datatypes.TestCase{
		Title:           required["title"],
		Description:     required["description"],
		Type:            typ,
		Priority:        priority,
		Preconditions:   preconditions,
		Steps:           steps,
		ExpectedOutcome: outcome,
		Tags:            dedupe(tags),
	}, nil
}

func mapSteps(obj map[string]any, caseIdx int) ([]datatypes.TestStep, error) {
	value, present := obj["steps"]
	if !present || value == nil {
		return []datatypes.TestStep{}, nil
	}
	rawSteps, ok := value.([]any)
	if !ok {
		return nil, &InvalidFieldError{Field: "steps", CaseIndex: caseIdx, StepIndex: -1, Reason: "expected a list"}
	}

	steps := make([]datatypes.TestStep, 0, len(rawSteps))
	for j, raw := range rawSteps {
		step, ok := raw.(map[string]any)
		if !ok {
			return nil, &InvalidFieldError{Field: "steps", CaseIndex: caseIdx, StepIndex: j, Reason: "step is not an object"}
		}

		numValue, present := step["step_number"]
		if !present || numValue == nil {
			return nil, &MissingFieldError{Field: "step_number", CaseIndex: caseIdx, StepIndex: j}
		}
		num, ok := numValue.(float64)
		if !ok || num < 1 || num != math.Trunc(num) || num > math.MaxInt32 {
			return nil, &InvalidFieldError{Field: "step_number", CaseIndex: caseIdx, StepIndex: j, Reason: "expected a positive integer"}
		}

		action, err := requiredString(step, "action", caseIdx, j)
		if err != nil {
			return nil, err
		}
		expected, err := requiredString(step, "expected_result", caseIdx, j)
		if err != nil {
			return nil, err
		}

		steps = append(steps, datatypes.TestStep{
			StepNumber:     int(num),
			Action:         action,
			ExpectedResult: expected,
		})
	}
	return steps, nil
}

// requiredString reads a non-empty string field.
func requiredString(obj map[string]any, field string, caseIdx, stepIdx int) (string, error) {
	value, present := obj[field]
	if !present || value == nil {
		return "", &MissingFieldError{Field: field, CaseIndex: caseIdx, StepIndex: stepIdx}
	}
	s, ok := value.(string)
	if !ok {
		return "", &InvalidFieldError{Field: field, CaseIndex: caseIdx, StepIndex: stepIdx, Reason: "expected a string"}
	}
	if s == "" {
		return "", &MissingFieldError{Field: field, CaseIndex: caseIdx, StepIndex: stepIdx}
	}
	return s, nil
}

// optionalString reads a string field, defaulting to "". ok is false when
// the field holds another type.
func optionalString(obj map[string]any, field string) (string, bool) {
	value, present := obj[field]
	if !present || value == nil {
		return "", true
	}
	s, ok := value.(string)
	return s, ok
}

func stringList(obj map[string]any, field string, caseIdx int) ([]string, error) {
	value, present := obj[field]
	if !present || value == nil {
		return []string{}, nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil, &InvalidFieldError{Field: field, CaseIndex: caseIdx, StepIndex: -1, Reason: "expected a list of strings"}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, &InvalidFieldError{Field: field, CaseIndex: caseIdx, StepIndex: -1, Reason: "expected a list of strings"}
		}
		out = append(out, s)
	}
	return out, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func buildMetadata(suite datatypes.NormalizedSuite, mctx Context, total int) map[string]any {
	types := make([]string, len(mctx.TestTypes))
	for i, t := range mctx.TestTypes {
		types[i] = string(t)
	}

	meta := map[string]any{
		MetaTestTypesRequested: types,
		MetaIncludeEdgeCases:   mctx.IncludeEdgeCases,
		MetaIncludeNegative:    mctx.IncludeNegativeTests,
		MetaTotalGenerated:     total,
	}
	for _, key := range []string{datatypes.KeyError, datatypes.KeyRawOutput} {
		if v, ok := suite[key]; ok {
			meta[key] = v
		}
	}
	return meta
}
