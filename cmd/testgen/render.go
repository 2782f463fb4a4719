// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianQA/pkg/ux"
	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
)

// renderSuite prints a suite for humans.
func renderSuite(p *ux.Printer, resp *datatypes.TestSuiteResponse) {
	title := resp.FeatureTitle
	if resp.IssueKey != "" {
		title = fmt.Sprintf("%s  %s", resp.IssueKey, title)
	}
	p.Title(title)

	if resp.Degraded() {
		var body strings.Builder
		body.WriteString(resp.CoverageSummary)
		if msg, ok := resp.Metadata[datatypes.KeyError].(string); ok && msg != "" {
			fmt.Fprintf(&body, "\n\nerror: %s", msg)
		}
		if raw, ok := resp.Metadata[datatypes.KeyRawOutput].(string); ok && raw != "" {
			fmt.Fprintf(&body, "\n\nraw output:\n%s", raw)
		}
		p.WarningBox("No test cases produced", body.String())
		return
	}

	for i, tc := range resp.TestCases {
		p.Box(fmt.Sprintf("%d. %s", i+1, tc.Title), caseBody(tc))
	}
	p.Success(fmt.Sprintf("%d test cases", len(resp.TestCases)))
	if resp.CoverageSummary != "" {
		p.Field("Coverage", resp.CoverageSummary)
	}
}

func caseBody(tc datatypes.TestCase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s]\n%s\n", tc.Type, tc.Priority, tc.Description)
	if len(tc.Preconditions) > 0 {
		b.WriteString("\nPreconditions:\n")
		for _, pre := range tc.Preconditions {
			fmt.Fprintf(&b, "  %s %s\n", ux.IconBullet, pre)
		}
	}
	if len(tc.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for _, s := range tc.Steps {
			fmt.Fprintf(&b, "  %d. %s %s %s\n", s.StepNumber, s.Action, ux.IconArrow, s.ExpectedResult)
		}
	}
	if tc.ExpectedOutcome != "" {
		fmt.Fprintf(&b, "\nExpected: %s\n", tc.ExpectedOutcome)
	}
	if len(tc.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(tc.Tags, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderIssue prints a fetched issue for humans.
func renderIssue(p *ux.Printer, issue *datatypes.Issue) {
	p.Title(fmt.Sprintf("%s  %s", issue.Key, issue.Summary))
	p.Field("Type", issue.IssueType)
	p.Field("Status", issue.Status)
	p.Field("Priority", issue.Priority)
	if issue.Description != "" {
		p.Box("Description", issue.Description)
	}
	var criteria strings.Builder
	for _, c := range issue.AcceptanceCriteria {
		fmt.Fprintf(&criteria, "%s %s\n", ux.IconBullet, c)
	}
	p.Box("Acceptance criteria", strings.TrimRight(criteria.String(), "\n"))
}
