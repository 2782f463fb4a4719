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

import "errors"

// Sentinel errors for the agent package.
var (
	// ErrGenerationFailed wraps every transport or backend failure of a
	// completion strategy.
	ErrGenerationFailed = errors.New("failed to generate test cases")

	// ErrToolNotFound indicates the model called a tool that is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidToolArguments indicates tool arguments could not be decoded.
	ErrInvalidToolArguments = errors.New("invalid tool arguments")

	// ErrNilClient indicates a completer was built without a backend.
	ErrNilClient = errors.New("llm client must not be nil")
)
