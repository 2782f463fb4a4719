// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompt turns a test suite request into the instruction sent to the
// completion backend.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
)

// MinTestCases is the number of test cases the model is asked for at least.
const MinTestCases = 5

// =============================================================================
// Templates
// =============================================================================

// SystemPrompt is the fixed QA persona and output contract.
const SystemPrompt = `You are a senior QA engineer who designs test cases from feature descriptions and acceptance criteria.

Every test case you write must:
1. Be unambiguous and executable by another tester
2. Be broken into numbered steps
3. List its preconditions and its overall expected outcome
4. Cover the positive path, the negative path and edge cases as requested

Answer with a single JSON object of this shape and nothing else:
{
  "test_cases": [
    {
      "title": "Short test case title",
      "description": "What the test verifies",
      "type": "functional|integration|e2e|unit|api",
      "priority": "high|medium|low",
      "preconditions": ["precondition"],
      "steps": [
        {"step_number": 1, "action": "What to do", "expected_result": "What should happen"}
      ],
      "expected_outcome": "Overall expected outcome",
      "tags": ["tag"]
    }
  ],
  "coverage_summary": "Which scenarios the suite covers"
}`

const userPromptTemplate = `Generate test cases for the following feature.

**Feature Title:** {{.Title}}

**Description:**
{{.Description}}

**Acceptance Criteria:**
{{- range .Criteria}}
- {{.}}
{{- end}}

**Requirements:**
- Generate {{join .TestTypes ", "}} test cases
- Include edge cases: {{yesno .EdgeCases}}
- Include negative test scenarios: {{yesno .NegativeTests}}

Work through the happy path, boundary conditions, error handling, data validation and complete user workflows.
Generate at least {{.MinCases}} test cases.
Return ONLY the JSON object described in your instructions, with no additional text.`

var userTemplate = template.Must(template.New("user").Funcs(template.FuncMap{
	"join": strings.Join,
	"yesno": func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	},
}).Parse(userPromptTemplate))

type userPromptData struct {
	Title         string
	Description   string
	Criteria      []string
	TestTypes     []string
	EdgeCases     bool
	NegativeTests bool
	MinCases      int
}

// =============================================================================
// Builder
// =============================================================================

// Payload is the rendered request for the completion backend.
type Payload struct {
	// System is the fixed system instruction.
	System string

	// User is the task for this feature.
	User string
}

// String joins both parts, for backends without a system slot.
func (p Payload) String() string {
	return p.System + "\n\n" + p.User
}

// Build renders the payload for req.
//
// # Description
//
// Title, description and criteria are interpolated verbatim. An empty test
// type set is rendered as "functional". No validation beyond that happens
// here; callers hand in a validated request.
//
// # Inputs
//
//   - req: The suite request.
//
// # Outputs
//
//   - Payload: System instruction and user task.
//   - error: Non-nil only if template execution fails.
func Build(req datatypes.TestSuiteRequest) (Payload, error) {
	types := req.ResolvedTestTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	data := userPromptData{
		Title:         req.Title,
		Description:   req.Description,
		Criteria:      req.AcceptanceCriteria,
		TestTypes:     names,
		EdgeCases:     req.IncludeEdgeCases,
		NegativeTests: req.IncludeNegativeTests,
		MinCases:      MinTestCases,
	}

	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return Payload{}, fmt.Errorf("render user prompt: %w", err)
	}
	return Payload{System: SystemPrompt, User: buf.String()}, nil
}
