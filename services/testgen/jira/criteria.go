// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package jira

import (
	"regexp"
	"strings"
)

// NoCriteriaPlaceholder is returned when an issue carries no recognizable
// acceptance criteria.
const NoCriteriaPlaceholder = "No acceptance criteria provided"

// criteriaMarkers are tried in order; the first one found wins.
var criteriaMarkers = compileMarkers("acceptance criteria:", "ac:", "acceptance:", "criteria:")

func compileMarkers(markers ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(markers))
	for i, m := range markers {
		out[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(m))
	}
	return out
}

// ExtractAcceptanceCriteria pulls acceptance criteria out of an issue.
//
// # Description
//
// A non-empty custom field value wins: a string becomes a single criterion
// and a list keeps its string items. Otherwise the description is scanned
// for the first marker ("acceptance criteria:", "ac:", "acceptance:",
// "criteria:", case-insensitive). The text after it, up to the next blank
// line or the next occurrence of the same marker, is split into lines with
// bullet characters stripped. Markers are
// matched as plain substrings, so "ac:" also fires inside words.
//
// This is best-effort. When nothing is found the result is the single
// NoCriteriaPlaceholder.
//
// # Inputs
//
//   - customField: Raw value of the criteria custom field, or nil.
//   - description: Issue description.
//
// # Outputs
//
//   - []string: Never empty.
func ExtractAcceptanceCriteria(customField any, description string) []string {
	if criteria := fromCustomField(customField); len(criteria) > 0 {
		return criteria
	}
	if criteria := fromDescription(description); len(criteria) > 0 {
		return criteria
	}
	return []string{NoCriteriaPlaceholder}
}

func fromCustomField(value any) []string {
	switch v := value.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []string:
		var out []string
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

func fromDescription(description string) []string {
	if description == "" {
		return nil
	}
	description = strings.ReplaceAll(description, "\r\n", "\n")

	for _, marker := range criteriaMarkers {
		loc := marker.FindStringIndex(description)
		if loc == nil {
			continue
		}
		section := description[loc[1]:]
		if next := marker.FindStringIndex(section); next != nil {
			section = section[:next[0]]
		}
		if end := strings.Index(section, "\n\n"); end >= 0 {
			section = section[:end]
		}

		var criteria []string
		for _, line := range strings.Split(section, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "*-•"))
			if line != "" {
				criteria = append(criteria, line)
			}
		}
		return criteria
	}
	return nil
}
