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
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianQA/pkg/ux"
	"github.com/AleutianAI/AleutianQA/services/testgen"
	"github.com/AleutianAI/AleutianQA/services/testgen/config"
	"github.com/AleutianAI/AleutianQA/services/testgen/jira"
)

func newIssueCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "issue KEY",
		Short: "Show the feature description the generator would read from a Jira issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(flags)
			if err != nil {
				return err
			}
			logger, err := setupLogging(settings, "testgen-cli")
			if err != nil {
				return err
			}
			defer logger.Close()

			return runIssue(cmd.Context(), settings, args[0], cmd.OutOrStdout(), flags.jsonOutput)
		},
	}
}

func runIssue(ctx context.Context, settings *config.Settings, key string, out io.Writer, asJSON bool) error {
	tracker, err := testgen.BuildIssueTracker(settings.Jira, nil)
	if err != nil {
		return err
	}
	if tracker == nil {
		return jira.ErrNotConfigured
	}
	issue, err := tracker.FetchIssue(ctx, key)
	if err != nil {
		return err
	}

	printer := ux.NewPrinter(out)
	if asJSON || printer.Plain() {
		return writeJSON(out, issue)
	}
	renderIssue(printer, issue)
	return nil
}
