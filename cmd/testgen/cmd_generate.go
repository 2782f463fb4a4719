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
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianQA/pkg/ux"
	"github.com/AleutianAI/AleutianQA/services/testgen"
	"github.com/AleutianAI/AleutianQA/services/testgen/config"
	"github.com/AleutianAI/AleutianQA/services/testgen/datatypes"
	"github.com/AleutianAI/AleutianQA/services/testgen/jira"
)

// generateInput holds the generate command's flags.
type generateInput struct {
	issueKey      string
	title         string
	description   string
	criteria      []string
	testTypes     []string
	noEdgeCases   bool
	noNegativeTst bool
}

// request converts flags into a validated generation request.
func (in generateInput) request() (*datatypes.GenerationRequest, error) {
	req := &datatypes.GenerationRequest{}
	if in.issueKey != "" {
		req.JiraIssue = &datatypes.JiraIssueInput{IssueKey: in.issueKey}
	} else if in.title != "" || in.description != "" {
		req.ManualInput = &datatypes.ManualInput{
			Title:              in.title,
			Description:        in.description,
			AcceptanceCriteria: append([]string{}, in.criteria...),
		}
	}
	for _, t := range in.testTypes {
		req.TestTypes = append(req.TestTypes, datatypes.TestCaseType(t))
	}
	edge, negative := !in.noEdgeCases, !in.noNegativeTst
	req.IncludeEdgeCases = &edge
	req.IncludeNegativeTests = &negative

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func newGenerateCmd(flags *globalFlags) *cobra.Command {
	in := generateInput{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate test cases for one feature and print them",
		Example: `  testgen generate --title "Login" --description "Users sign in" --criteria "Bad passwords are rejected"
  testgen generate --issue QA-123 --types functional,api`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(flags)
			if err != nil {
				return err
			}
			logger, err := setupLogging(settings, "testgen-cli")
			if err != nil {
				return err
			}
			defer logger.Close()

			return runGenerate(cmd.Context(), settings, in, cmd.OutOrStdout(), flags.jsonOutput)
		},
	}
	cmd.Flags().StringVar(&in.issueKey, "issue", "", "Jira issue key to read the feature from")
	cmd.Flags().StringVar(&in.title, "title", "", "feature title")
	cmd.Flags().StringVar(&in.description, "description", "", "feature description")
	cmd.Flags().StringArrayVar(&in.criteria, "criteria", nil, "acceptance criterion (repeatable)")
	cmd.Flags().StringSliceVar(&in.testTypes, "types", nil, "test types: functional, integration, e2e, unit, api")
	cmd.Flags().BoolVar(&in.noEdgeCases, "no-edge-cases", false, "do not ask for edge cases")
	cmd.Flags().BoolVar(&in.noNegativeTst, "no-negative-tests", false, "do not ask for negative tests")
	cmd.MarkFlagsMutuallyExclusive("issue", "title")
	return cmd
}

// runGenerate builds the pipeline from settings, runs one generation and
// prints the suite.
func runGenerate(ctx context.Context, settings *config.Settings, in generateInput, out io.Writer, asJSON bool) error {
	req, err := in.request()
	if err != nil {
		return err
	}

	client, err := testgen.BuildLLMClient(settings.LLM)
	if err != nil {
		return err
	}
	gen, err := testgen.BuildGenerator(settings.Generation, client, nil)
	if err != nil {
		return err
	}

	var suiteReq datatypes.TestSuiteRequest
	if req.JiraIssue != nil {
		tracker, err := testgen.BuildIssueTracker(settings.Jira, nil)
		if err != nil {
			return err
		}
		if tracker == nil {
			return jira.ErrNotConfigured
		}
		issue, err := tracker.FetchIssue(ctx, req.JiraIssue.IssueKey)
		if err != nil {
			return err
		}
		suiteReq = req.FromIssue(issue)
	} else {
		suiteReq = req.FromManual()
	}

	if settings.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Server.RequestTimeout)
		defer cancel()
	}
	printer := ux.NewPrinter(out)
	human := !asJSON && !printer.Plain()

	var resp *datatypes.TestSuiteResponse
	generate := func() error {
		resp, err = gen.Generate(ctx, suiteReq)
		return err
	}
	if human {
		err = ux.WithSpinner(out, "Generating test cases for "+suiteReq.Title, generate)
	} else {
		err = generate()
	}
	if err != nil {
		return err
	}

	if !human {
		return writeJSON(out, resp)
	}
	renderSuite(printer, resp)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
