// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize extracts the test suite JSON object from raw model text.
//
// Normalize never fails. When the text holds no usable object it returns a
// diagnostic empty suite: a NormalizedSuite with no test cases and a coverage
// summary naming what went wrong. Callers tell the two outcomes apart with
// Reason.
package normalize

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
)

const (
	// NoJSONRawLimit is how many characters of raw text are kept when no
	// braces were found.
	NoJSONRawLimit = 500

	// ParseFailureRawLimit is how many characters of raw text are kept when
	// the sliced text failed to decode.
	ParseFailureRawLimit = 1000
)

// Degradation reasons returned by Reason.
const (
	ReasonNone             = ""
	ReasonNoJSON           = "no_json"
	ReasonParseFailure     = "parse_failure"
	ReasonInvalidStructure = "invalid_structure"
)

// Normalize turns raw model output into a NormalizedSuite.
//
// # Description
//
// Slices raw from the first '{' to the last '}' inclusive and decodes the
// slice as a JSON object. The slice is not brace-balanced: prose with stray
// braces, or several objects in one answer, makes the decode fail and lands
// on the parse-failure suite.
//
//   - No '{' or no '}': test_cases [], coverage_summary
//     MarkerNoStructuredOutput, raw_output holding the first 500 characters.
//   - Decode failure: test_cases [], coverage_summary MarkerParseFailure,
//     error holding the decoder message, raw_output holding the first 1000
//     characters.
//   - Decoded object without test_cases: test_cases [], coverage_summary
//     MarkerInvalidStructure.
//   - Otherwise the decoded object, untouched.
//
// # Inputs
//
//   - raw: Model text. May be empty.
//
// # Outputs
//
//   - datatypes.NormalizedSuite: Always carries the test_cases key.
func Normalize(raw string) datatypes.NormalizedSuite {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 {
		slog.Warn("No JSON object found in model output", "length", len(raw))
		return datatypes.NormalizedSuite{
			datatypes.KeyTestCases:       []any{},
			datatypes.KeyCoverageSummary: datatypes.MarkerNoStructuredOutput,
			datatypes.KeyRawOutput:       truncate(raw, NoJSONRawLimit),
		}
	}

	// A '}' before the first '{' leaves nothing to decode.
	var candidate string
	if end >= start {
		candidate = raw[start : end+1]
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		slog.Warn("Failed to decode model output", "error", err)
		return datatypes.NormalizedSuite{
			datatypes.KeyTestCases:       []any{},
			datatypes.KeyCoverageSummary: datatypes.MarkerParseFailure,
			datatypes.KeyError:           err.Error(),
			datatypes.KeyRawOutput:       truncate(raw, ParseFailureRawLimit),
		}
	}

	if _, ok := decoded[datatypes.KeyTestCases]; !ok {
		slog.Warn("Model output has no test_cases key")
		return datatypes.NormalizedSuite{
			datatypes.KeyTestCases:       []any{},
			datatypes.KeyCoverageSummary: datatypes.MarkerInvalidStructure,
		}
	}
	return datatypes.NormalizedSuite(decoded)
}

// Reason classifies a suite returned by Normalize. It returns ReasonNone for
// a decoded model answer.
func Reason(suite datatypes.NormalizedSuite) string {
	if len(suite.TestCases()) > 0 {
		return ReasonNone
	}
	if _, ok := suite[datatypes.KeyError]; ok && suite.CoverageSummary() == datatypes.MarkerParseFailure {
		return ReasonParseFailure
	}
	if _, ok := suite[datatypes.KeyRawOutput]; ok && suite.CoverageSummary() == datatypes.MarkerNoStructuredOutput {
		return ReasonNoJSON
	}
	if len(suite) == 2 && suite.CoverageSummary() == datatypes.MarkerInvalidStructure {
		return ReasonInvalidStructure
	}
	return ReasonNone
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
