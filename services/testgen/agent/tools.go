// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianQA/services/llm"
	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
)

// Tool names exposed to the agentic strategy.
const (
	ToolValidateTestCase   = "validate_test_case"
	ToolStructureTestCases = "structure_test_cases"
)

// =============================================================================
// Tool Interface and Registry
// =============================================================================

// Tool is a capability the model may invoke during the agentic loop.
//
// Tools must be pure: they see only their arguments, never request state.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Definition returns the declaration sent to the backend.
	Definition() llm.ToolDefinition

	// Execute runs the tool on JSON-encoded arguments and returns the
	// JSON-encoded result.
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry manages tool registration and lookup.
//
// Thread Safety:
//
//	Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// DefaultRegistry returns a registry holding the shape validation and
// output structuring tools.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(validateTestCaseTool{})
	r.Register(structureTestCasesTool{})
	return r
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(tool Tool) {
	if tool == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.byName[name]
	return tool, ok
}

// Definitions returns the declarations of every tool, sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.byName))
	for _, tool := range r.byName {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool.Execute(ctx, args)
}

// =============================================================================
// Shape Validation
// =============================================================================

// ShapeRequiredFields are the fields validate_test_case insists on.
var ShapeRequiredFields = []string{"title", "description", "type", "priority", "steps", "expected_outcome"}

// ShapeReport is the result of ValidateShape.
type ShapeReport struct {
	Valid            bool     `json:"valid"`
	MissingFields    []string `json:"missing_fields"`
	HasSteps         bool     `json:"has_steps"`
	HasPreconditions bool     `json:"has_preconditions"`
}

// ValidateShape checks a candidate test case against ShapeRequiredFields.
//
// A field counts as missing when it is absent, null, or an empty string,
// list, object, zero or false.
func ValidateShape(testCase map[string]any) ShapeReport {
	missing := make([]string, 0, len(ShapeRequiredFields))
	for _, field := range ShapeRequiredFields {
		if isBlank(testCase[field]) {
			missing = append(missing, field)
		}
	}
	return ShapeReport{
		Valid:            len(missing) == 0,
		MissingFields:    missing,
		HasSteps:         !isBlank(testCase["steps"]),
		HasPreconditions: !isBlank(testCase["preconditions"]),
	}
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	case float64:
		return x == 0
	case bool:
		return !x
	default:
		return false
	}
}

// =============================================================================
// Output Structuring
// =============================================================================

// StructureOutput wraps test cases and a summary into the canonical envelope.
// A nil list becomes empty.
func StructureOutput(testCases []any, coverageSummary string) map[string]any {
	if testCases == nil {
		testCases = []any{}
	}
	return map[string]any{
		datatypes.KeyTestCases:       testCases,
		datatypes.KeyCoverageSummary: coverageSummary,
		datatypes.KeyTotalCount:      len(testCases),
	}
}

// =============================================================================
// Tool Adapters
// =============================================================================

type validateTestCaseTool struct{}

func (validateTestCaseTool) Name() string { return ToolValidateTestCase }

func (validateTestCaseTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolValidateTestCase,
		Description: "Validate a test case structure and completeness",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"test_case": map[string]any{
					"type":        "object",
					"description": "The candidate test case to check",
				},
			},
			"required": []string{"test_case"},
		},
	}
}

func (validateTestCaseTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		TestCase map[string]any `json:"test_case"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	return encodeResult(ValidateShape(in.TestCase))
}

type structureTestCasesTool struct{}

func (structureTestCasesTool) Name() string { return ToolStructureTestCases }

func (structureTestCasesTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolStructureTestCases,
		Description: "Structure raw test cases into the required JSON format",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"test_cases": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "object"},
				},
				"coverage_summary": map[string]any{"type": "string"},
			},
			"required": []string{"test_cases", "coverage_summary"},
		},
	}
}

func (structureTestCasesTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in struct {
		TestCases       []any  `json:"test_cases"`
		CoverageSummary string `json:"coverage_summary"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	return encodeResult(StructureOutput(in.TestCases, in.CoverageSummary))
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToolArguments, err)
	}
	return nil
}

func encodeResult(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(out), nil
}
