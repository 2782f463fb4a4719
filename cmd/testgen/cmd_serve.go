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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianQA/services/testgen"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the test case generation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings(flags)
			if err != nil {
				return err
			}
			logger, err := setupLogging(settings, "test-case-generator")
			if err != nil {
				return err
			}
			defer logger.Close()

			gin.SetMode(gin.ReleaseMode)
			slog.Info("Starting test case generator",
				"addr", settings.Server.Addr(),
				"llm_backend", settings.LLM.Backend,
				"strategy", settings.Generation.Strategy,
				"jira_enabled", settings.Jira.Enabled())

			svc, err := testgen.New(settings, nil)
			if err != nil {
				return err
			}
			return svc.Run(cmd.Context())
		},
	}
}
