// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mapper

import (
	"errors"
	"fmt"
)

// ErrMapping is the root of every error returned by Map.
var ErrMapping = errors.New("test suite mapping failed")

// MissingFieldError reports a required field that is absent or empty.
//
// StepIndex is -1 when the field belongs to the test case itself.
type MissingFieldError struct {
	Field     string
	CaseIndex int
	StepIndex int
}

func (e *MissingFieldError) Error() string {
	if e.StepIndex >= 0 {
		return fmt.Sprintf("test case %d step %d: missing required field %q", e.CaseIndex, e.StepIndex, e.Field)
	}
	return fmt.Sprintf("test case %d: missing required field %q", e.CaseIndex, e.Field)
}

// Unwrap lets errors.Is match ErrMapping.
func (e *MissingFieldError) Unwrap() error { return ErrMapping }

// InvalidFieldError reports a field that is present but has the wrong type
// or an unknown enum value.
//
// CaseIndex is -1 for suite-level fields. StepIndex is -1 when the field
// belongs to the test case itself.
type InvalidFieldError struct {
	Field     string
	CaseIndex int
	StepIndex int
	Reason    string
}

func (e *InvalidFieldError) Error() string {
	switch {
	case e.CaseIndex < 0:
		return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
	case e.StepIndex >= 0:
		return fmt.Sprintf("test case %d step %d: invalid field %q: %s", e.CaseIndex, e.StepIndex, e.Field, e.Reason)
	default:
		return fmt.Sprintf("test case %d: invalid field %q: %s", e.CaseIndex, e.Field, e.Reason)
	}
}

// Unwrap lets errors.Is match ErrMapping.
func (e *InvalidFieldError) Unwrap() error { return ErrMapping }
