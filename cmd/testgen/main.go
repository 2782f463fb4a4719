// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command testgen runs the test case generator as an HTTP service or as a
// one-shot CLI.
//
// # Usage
//
//	# Serve the HTTP API on :8000
//	testgen serve
//
//	# Generate from a typed-in feature
//	testgen generate --title "Password reset" \
//	    --description "Users reset their password by email" \
//	    --criteria "Email is sent" --criteria "Link expires after 1h"
//
//	# Generate from a Jira issue
//	testgen generate --issue QA-123
//
//	# Show what the generator would read from Jira
//	testgen issue QA-123
//
// Configuration comes from --config (YAML), --env-file (default .env) and
// environment variables; see services/testgen/config.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
