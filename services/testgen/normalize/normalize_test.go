// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package normalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
)

func TestNormalize_ScenarioA_ProseAroundObject(t *testing.T) {
	raw := `Here is the result: {"test_cases": [{"title":"T1","description":"D1","type":"functional","priority":"high","steps":[],"preconditions":[]}], "coverage_summary":"basic"}`

	suite := Normalize(raw)

	require.Len(t, suite.TestCases(), 1)
	assert.Equal(t, "basic", suite.CoverageSummary())
	assert.Equal(t, ReasonNone, Reason(suite))
	tc := suite.TestCases()[0].(map[string]any)
	assert.Equal(t, "T1", tc["title"])
}

func TestNormalize_ScenarioB_NoBraces(t *testing.T) {
	suite := Normalize("I couldn't complete this.")

	assert.Empty(t, suite.TestCases())
	assert.NotNil(t, suite[datatypes.KeyTestCases])
	assert.Equal(t, datatypes.MarkerNoStructuredOutput, suite.CoverageSummary())
	assert.Equal(t, "I couldn't complete this.", suite[datatypes.KeyRawOutput])
	assert.NotContains(t, suite, datatypes.KeyError)
	assert.Equal(t, ReasonNoJSON, Reason(suite))
}

func TestNormalize_ScenarioD_MalformedJSON(t *testing.T) {
	suite := Normalize(`{"test_cases": [}`)

	assert.Empty(t, suite.TestCases())
	assert.Equal(t, datatypes.MarkerParseFailure, suite.CoverageSummary())
	errMsg, ok := suite[datatypes.KeyError].(string)
	require.True(t, ok)
	assert.NotEmpty(t, errMsg)
	assert.Equal(t, `{"test_cases": [}`, suite[datatypes.KeyRawOutput])
	assert.Equal(t, ReasonParseFailure, Reason(suite))
}

func TestNormalize_MissingTestCasesKey(t *testing.T) {
	suite := Normalize(`{"cases": [], "coverage_summary": "x"}`)

	assert.Equal(t, datatypes.NormalizedSuite{
		datatypes.KeyTestCases:       []any{},
		datatypes.KeyCoverageSummary: datatypes.MarkerInvalidStructure,
	}, suite)
	assert.Equal(t, ReasonInvalidStructure, Reason(suite))
}

func TestNormalize_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		summary string
	}{
		{name: "empty", raw: "", summary: datatypes.MarkerNoStructuredOutput},
		{name: "only open brace", raw: "look { here", summary: datatypes.MarkerNoStructuredOutput},
		{name: "only close brace", raw: "look } here", summary: datatypes.MarkerNoStructuredOutput},
		{name: "close before open", raw: "} then {", summary: datatypes.MarkerParseFailure},
		{name: "two objects", raw: `{"test_cases": []} and {"test_cases": []}`, summary: datatypes.MarkerParseFailure},
		{name: "stray brace in trailing prose", raw: `{"test_cases": []} note: use {curly}`, summary: datatypes.MarkerParseFailure},
		{name: "markdown fence", raw: "```json\n{\"test_cases\": [], \"coverage_summary\": \"ok\"}\n```", summary: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suite := Normalize(tt.raw)
			assert.Equal(t, tt.summary, suite.CoverageSummary())
			assert.Contains(t, suite, datatypes.KeyTestCases)
		})
	}
}

func TestNormalize_ValidObjectPassesThroughUnchanged(t *testing.T) {
	objects := []string{
		`{"test_cases": []}`,
		`{"test_cases": [{"title": "a", "extra": {"nested": [1, 2]}}], "coverage_summary": "s", "total_count": 1}`,
		`{"test_cases": [], "model_notes": "unknown keys survive"}`,
	}
	wrappers := []struct{ prefix, suffix string }{
		{"", ""},
		{"Sure! ", ""},
		{"", "\nLet me know if you need more."},
		{"Result:\n", "\n-- end"},
	}

	for _, obj := range objects {
		var want map[string]any
		require.NoError(t, json.Unmarshal([]byte(obj), &want))

		for _, w := range wrappers {
			got := Normalize(w.prefix + obj + w.suffix)
			if diff := cmp.Diff(datatypes.NormalizedSuite(want), got); diff != "" {
				t.Errorf("Normalize(%q) mismatch (-want +got):\n%s", w.prefix+obj+w.suffix, diff)
			}
		}
	}
}

func TestNormalize_RawOutputTruncatedByCharacters(t *testing.T) {
	long := strings.Repeat("é", 600)
	suite := Normalize(long)
	assert.Equal(t, 500, len([]rune(suite[datatypes.KeyRawOutput].(string))))

	broken := "{" + strings.Repeat("ü", 1200) + "}"
	suite = Normalize(broken)
	assert.Equal(t, datatypes.MarkerParseFailure, suite.CoverageSummary())
	assert.Equal(t, 1000, len([]rune(suite[datatypes.KeyRawOutput].(string))))
}

func TestReason_DecodedEmptySuite(t *testing.T) {
	suite := Normalize(`{"test_cases": [], "coverage_summary": "nothing applies"}`)
	assert.Equal(t, ReasonNone, Reason(suite))
}
