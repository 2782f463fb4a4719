// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the settings of the test case generator.
//
// # Description
//
// Settings are layered, later layers winning:
//
//  1. Defaults (Default)
//  2. An optional YAML file
//  3. A .env file, which only fills variables not already in the environment
//  4. Environment variables
//
// Secrets that are still empty after that are read from Docker/Podman
// secrets under /run/secrets. The result is validated before it is returned.
//
// # Environment Variables
//
//   - SERVICE_PORT, SERVICE_HOST: listen address (default 0.0.0.0:8000)
//   - LOG_LEVEL, LOG_JSON, LOG_DIR: logging
//   - LLM_BACKEND: anthropic, openai, ollama or mock (default anthropic)
//   - LLM_MODEL, LLM_BASE_URL: backend model and endpoint override
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, OLLAMA_BASE_URL: backend credentials
//   - GENERATION_STRATEGY: agentic, direct or auto (default auto)
//   - AGENT_MAX_TURNS, GENERATION_MAX_TOKENS, GENERATION_TEMPERATURE
//   - JIRA_URL, JIRA_EMAIL, JIRA_API_TOKEN, JIRA_AC_FIELD, JIRA_TEST_ISSUE_TYPE
//   - OTEL_EXPORTER_OTLP_ENDPOINT: empty disables tracing, "stdout" prints spans
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST: generation endpoint rate limit
//   - REQUEST_TIMEOUT, CORS_ORIGINS (comma separated)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
	BackendMock      = "mock"
)

// secretsDir is where container runtimes mount secrets.
var secretsDir = "/run/secrets"

// =============================================================================
// Settings
// =============================================================================

// Settings is the full service configuration.
type Settings struct {
	Server     ServerSettings     `yaml:"server"`
	Logging    LoggingSettings    `yaml:"logging"`
	LLM        LLMSettings        `yaml:"llm"`
	Generation GenerationSettings `yaml:"generation"`
	Jira       JiraSettings       `yaml:"jira"`
	Telemetry  TelemetrySettings  `yaml:"telemetry"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`

	// RateLimitRPS limits generation requests per second per client IP.
	// Zero disables the limiter.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" validate:"min=0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" validate:"min=0"`

	// RequestTimeout bounds a whole generation call. Zero means no timeout.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=0"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`

	// CORSOrigins lists allowed origins. Empty allows all.
	CORSOrigins []string `yaml:"cors_origins" validate:"dive,url"`
}

// Addr returns host:port.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingSettings configures pkg/logging.
type LoggingSettings struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// LLMSettings selects and configures the completion backend.
type LLMSettings struct {
	Backend string        `yaml:"backend" validate:"oneof=anthropic openai ollama mock"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// GenerationSettings tunes the completion strategies.
type GenerationSettings struct {
	Strategy    string   `yaml:"strategy" validate:"oneof=agentic direct auto"`
	MaxTurns    int      `yaml:"max_turns" validate:"min=1,max=10"`
	MaxTokens   int      `yaml:"max_tokens" validate:"min=0"`
	Temperature *float64 `yaml:"temperature" validate:"omitempty,min=0,max=2"`
}

// JiraSettings configures the issue tracker. Jira is optional: with an empty
// URL the issue endpoints answer 503.
type JiraSettings struct {
	URL           string        `yaml:"url" validate:"omitempty,url"`
	Email         string        `yaml:"email"`
	APIToken      string        `yaml:"api_token"`
	CriteriaField string        `yaml:"criteria_field"`
	TestIssueType string        `yaml:"test_issue_type"`
	Timeout       time.Duration `yaml:"timeout" validate:"min=0"`
}

// Enabled reports whether enough is configured to reach Jira.
func (j JiraSettings) Enabled() bool {
	return j.URL != "" && j.Email != "" && j.APIToken != ""
}

// TelemetrySettings configures tracing and metrics.
type TelemetrySettings struct {
	// OTelEndpoint is the OTLP gRPC collector. Empty disables tracing;
	// "stdout" exports spans to stdout.
	OTelEndpoint string `yaml:"otel_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Metrics      bool   `yaml:"metrics"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Server: ServerSettings{
			Host:            "0.0.0.0",
			Port:            8000,
			RateLimitRPS:    2,
			RateLimitBurst:  5,
			RequestTimeout:  5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingSettings{Level: "info"},
		LLM: LLMSettings{
			Backend: BackendAnthropic,
			Timeout: 2 * time.Minute,
		},
		Generation: GenerationSettings{
			Strategy: "auto",
			MaxTurns: 10,
		},
		Jira: JiraSettings{
			CriteriaField: "customfield_10100",
			TestIssueType: "Test",
		},
		Telemetry: TelemetrySettings{
			ServiceName: "test-case-generator",
			Metrics:     true,
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Options tell Load where to look.
type Options struct {
	// ConfigPath is a YAML file. Empty skips the file; a path that does not
	// exist is an error.
	ConfigPath string

	// EnvFile is a dotenv file. A missing file is ignored.
	EnvFile string
}

// Load builds validated settings.
//
// # Inputs
//
//   - opts: Config and dotenv file locations.
//
// # Outputs
//
//   - *Settings: Validated settings.
//   - error: Non-nil if a file cannot be read or validation fails.
func Load(opts Options) (*Settings, error) {
	s := Default()

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse the config file %s: %w", opts.ConfigPath, err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	if err := applyEnv(&s); err != nil {
		return nil, err
	}
	applySecrets(&s)
	s.normalize()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints and backend credentials.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	switch s.LLM.Backend {
	case BackendAnthropic, BackendOpenAI:
		if s.LLM.APIKey == "" {
			return fmt.Errorf("invalid settings: llm backend %q needs an API key", s.LLM.Backend)
		}
	case BackendOllama:
		if s.LLM.BaseURL == "" {
			return fmt.Errorf("invalid settings: llm backend %q needs OLLAMA_BASE_URL", s.LLM.Backend)
		}
	}
	return nil
}

func (s *Settings) normalize() {
	s.Logging.Level = strings.ToLower(s.Logging.Level)
	if s.Logging.Level == "warning" {
		s.Logging.Level = "warn"
	}
	s.LLM.Backend = strings.ToLower(s.LLM.Backend)
	s.Generation.Strategy = strings.ToLower(s.Generation.Strategy)
}

// applyEnv overrides s with any set environment variable.
func applyEnv(s *Settings) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SERVICE_HOST", &s.Server.Host)
	integer("SERVICE_PORT", &s.Server.Port)
	float("RATE_LIMIT_RPS", &s.Server.RateLimitRPS)
	integer("RATE_LIMIT_BURST", &s.Server.RateLimitBurst)
	duration("REQUEST_TIMEOUT", &s.Server.RequestTimeout)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		s.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				s.Server.CORSOrigins = append(s.Server.CORSOrigins, o)
			}
		}
	}

	str("LOG_LEVEL", &s.Logging.Level)
	boolean("LOG_JSON", &s.Logging.JSON)
	str("LOG_DIR", &s.Logging.Dir)

	str("LLM_BACKEND", &s.LLM.Backend)
	str("LLM_MODEL", &s.LLM.Model)
	str("LLM_BASE_URL", &s.LLM.BaseURL)
	duration("LLM_TIMEOUT", &s.LLM.Timeout)
	switch strings.ToLower(s.LLM.Backend) {
	case BackendAnthropic:
		str("ANTHROPIC_API_KEY", &s.LLM.APIKey)
	case BackendOpenAI:
		str("OPENAI_API_KEY", &s.LLM.APIKey)
	case BackendOllama:
		str("OLLAMA_BASE_URL", &s.LLM.BaseURL)
	}

	str("GENERATION_STRATEGY", &s.Generation.Strategy)
	integer("AGENT_MAX_TURNS", &s.Generation.MaxTurns)
	integer("GENERATION_MAX_TOKENS", &s.Generation.MaxTokens)
	if _, ok := os.LookupEnv("GENERATION_TEMPERATURE"); ok {
		t := -1.0
		float("GENERATION_TEMPERATURE", &t)
		if t >= 0 {
			s.Generation.Temperature = &t
		}
	}

	str("JIRA_URL", &s.Jira.URL)
	str("JIRA_EMAIL", &s.Jira.Email)
	str("JIRA_API_TOKEN", &s.Jira.APIToken)
	str("JIRA_AC_FIELD", &s.Jira.CriteriaField)
	str("JIRA_TEST_ISSUE_TYPE", &s.Jira.TestIssueType)

	str("OTEL_EXPORTER_OTLP_ENDPOINT", &s.Telemetry.OTelEndpoint)
	str("OTEL_SERVICE_NAME", &s.Telemetry.ServiceName)
	boolean("METRICS_ENABLED", &s.Telemetry.Metrics)

	return errors.Join(errs...)
}

// applySecrets fills still-empty credentials from mounted secrets.
func applySecrets(s *Settings) {
	read := func(name string, dst *string) {
		if *dst != "" {
			return
		}
		data, err := os.ReadFile(filepath.Join(secretsDir, name))
		if err != nil {
			return
		}
		*dst = strings.TrimSpace(string(data))
		slog.Debug("Read secret from file", "name", name)
	}

	switch strings.ToLower(s.LLM.Backend) {
	case BackendAnthropic:
		read("anthropic_api_key", &s.LLM.APIKey)
	case BackendOpenAI:
		read("openai_api_key", &s.LLM.APIKey)
	}
	read("jira_api_token", &s.Jira.APIToken)
}
