// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SERVICE_HOST", "SERVICE_PORT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "CORS_ORIGINS",
	"LOG_LEVEL", "LOG_JSON", "LOG_DIR",
	"LLM_BACKEND", "LLM_MODEL", "LLM_BASE_URL", "LLM_TIMEOUT",
	"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OLLAMA_BASE_URL",
	"GENERATION_STRATEGY", "AGENT_MAX_TURNS", "GENERATION_MAX_TOKENS", "GENERATION_TEMPERATURE",
	"JIRA_URL", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_AC_FIELD", "JIRA_TEST_ISSUE_TYPE",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME", "METRICS_ENABLED",
}

// clearEnv isolates a test from the host environment and mounted secrets.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	old := secretsDir
	secretsDir = t.TempDir()
	t.Cleanup(func() { secretsDir = old })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	s, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", s.Server.Addr())
	assert.Equal(t, "info", s.Logging.Level)
	assert.Equal(t, BackendAnthropic, s.LLM.Backend)
	assert.Equal(t, "sk-test", s.LLM.APIKey)
	assert.Equal(t, "auto", s.Generation.Strategy)
	assert.Equal(t, 10, s.Generation.MaxTurns)
	assert.Nil(t, s.Generation.Temperature)
	assert.Equal(t, "customfield_10100", s.Jira.CriteriaField)
	assert.False(t, s.Jira.Enabled())
	assert.Equal(t, "test-case-generator", s.Telemetry.ServiceName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PORT", "9100")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("LLM_BACKEND", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "ignored")
	t.Setenv("GENERATION_STRATEGY", "Direct")
	t.Setenv("AGENT_MAX_TURNS", "4")
	t.Setenv("GENERATION_TEMPERATURE", "0.2")
	t.Setenv("JIRA_URL", "https://example.atlassian.net")
	t.Setenv("JIRA_EMAIL", "qa@example.com")
	t.Setenv("JIRA_API_TOKEN", "jt")
	t.Setenv("REQUEST_TIMEOUT", "90s")

	s, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, 9100, s.Server.Port)
	assert.Equal(t, "warn", s.Logging.Level)
	assert.Equal(t, BackendOpenAI, s.LLM.Backend)
	assert.Equal(t, "sk-openai", s.LLM.APIKey)
	assert.Equal(t, "direct", s.Generation.Strategy)
	assert.Equal(t, 4, s.Generation.MaxTurns)
	require.NotNil(t, s.Generation.Temperature)
	assert.InDelta(t, 0.2, *s.Generation.Temperature, 1e-9)
	assert.True(t, s.Jira.Enabled())
	assert.Equal(t, 90*time.Second, s.Server.RequestTimeout)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "testgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8100
llm:
  backend: ollama
  base_url: http://localhost:11434
  model: llama3
generation:
  strategy: agentic
  max_turns: 3
`), 0o600))
	t.Setenv("AGENT_MAX_TURNS", "6")

	s, err := Load(Options{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, 8100, s.Server.Port)
	assert.Equal(t, BackendOllama, s.LLM.Backend)
	assert.Equal(t, "llama3", s.LLM.Model)
	assert.Equal(t, "agentic", s.Generation.Strategy)
	assert.Equal(t, 6, s.Generation.MaxTurns, "env wins over the file")
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ANTHROPIC_API_KEY=from-file\nSERVICE_PORT=8200\n"), 0o600))
	t.Setenv("SERVICE_PORT", "8300")
	t.Cleanup(func() { _ = os.Unsetenv("ANTHROPIC_API_KEY") })

	s, err := Load(Options{EnvFile: envFile})
	require.NoError(t, err)

	assert.Equal(t, "from-file", s.LLM.APIKey)
	assert.Equal(t, 8300, s.Server.Port)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_BACKEND", "mock")

	_, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	assert.NoError(t, err)
}

func TestLoad_SecretsFallback(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "anthropic_api_key"), []byte("sk-secret\n"), 0o600))

	s, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", s.LLM.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing api key", env: map[string]string{}},
		{name: "unknown backend", env: map[string]string{"LLM_BACKEND": "bard"}},
		{name: "unknown strategy", env: map[string]string{"LLM_BACKEND": "mock", "GENERATION_STRATEGY": "greedy"}},
		{name: "turns above cap", env: map[string]string{"LLM_BACKEND": "mock", "AGENT_MAX_TURNS": "11"}},
		{name: "port not a number", env: map[string]string{"LLM_BACKEND": "mock", "SERVICE_PORT": "http"}},
		{name: "bad jira url", env: map[string]string{"LLM_BACKEND": "mock", "JIRA_URL": "not a url"}},
		{name: "ollama without url", env: map[string]string{"LLM_BACKEND": "ollama"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(Options{})
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(Options{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}
