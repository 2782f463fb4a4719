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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianQA/pkg/logging"
	"github.com/AleutianAI/AleutianQA/services/testgen/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	jsonOutput bool
	strategy   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "testgen",
		Short: "Generate structured test cases from feature descriptions with an LLM",
		Long: `testgen turns a feature description, typed in or fetched from Jira,
into a structured test suite by prompting a large language model.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file (ignored if missing)")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "print JSON even on a terminal")
	root.PersistentFlags().StringVar(&flags.strategy, "strategy", "", "override the completion strategy: agentic, direct or auto")

	root.AddCommand(newServeCmd(flags), newGenerateCmd(flags), newIssueCmd(flags))
	return root
}

// loadSettings reads configuration and applies flag overrides.
func loadSettings(flags *globalFlags) (*config.Settings, error) {
	settings, err := config.Load(config.Options{ConfigPath: flags.configPath, EnvFile: flags.envFile})
	if err != nil {
		return nil, err
	}
	if flags.strategy != "" {
		settings.Generation.Strategy = flags.strategy
		if err := settings.Validate(); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

// setupLogging installs the default slog logger. The caller closes it.
func setupLogging(settings *config.Settings, service string) (*logging.Logger, error) {
	level, ok := logging.ParseLevel(settings.Logging.Level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", settings.Logging.Level)
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  settings.Logging.Dir,
		Service: service,
		JSON:    settings.Logging.JSON,
	})
	slog.SetDefault(logger.Slog())
	return logger, nil
}
