// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads flowtrace runtime settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Settings holds all environment-driven configuration.
type Settings struct {
	// Lineage event emission
	LineageEndpoint  string
	LineageNamespace string
	LineageAPIKey    string

	// OpenTelemetry
	ServiceName   string
	OTLPEndpoint  string
	ConsoleTraces bool

	// Prometheus metrics endpoint
	PrometheusEnabled bool
	PrometheusPort    int

	// Behavior
	WarnOnMissingIO bool

	// Contracts registry
	ContractsDir string

	// LLM classification
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string
}

// Defaults returns the default settings.
func Defaults() Settings {
	return Settings{
		LineageNamespace:  "notebook",
		ServiceName:       "flowtrace",
		ConsoleTraces:     false,
		PrometheusEnabled: false,
		PrometheusPort:    9108,
		WarnOnMissingIO:   true,
		ContractsDir:      ".flowtrace/contracts",
		LLMProvider:       "openai",
		LLMModel:          "gpt-4",
	}
}

// FromEnv creates Settings from environment variables, falling back to
// defaults for anything unset.
//
// Supported environment variables:
//   - FLOWTRACE_LINEAGE_ENDPOINT: lineage event receiver URL (empty disables transport)
//   - FLOWTRACE_LINEAGE_NAMESPACE: job namespace for lineage events (default: notebook)
//   - FLOWTRACE_LINEAGE_API_KEY: bearer token for the lineage receiver
//   - OTEL_SERVICE_NAME: service name for traces (default: flowtrace)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP trace receiver (empty disables export)
//   - FLOWTRACE_CONSOLE_TRACES: true/1 to also dump spans to stdout
//   - FLOWTRACE_PROM_ENABLED: true/1 to serve Prometheus metrics
//   - FLOWTRACE_PROM_PORT: metrics port (default: 9108)
//   - FLOWTRACE_WARN_ON_MISSING_IO: false/0 to silence missing-I/O warnings
//   - FLOWTRACE_CONTRACTS_DIR: contract registry directory (default: .flowtrace/contracts)
//   - FLOWTRACE_LLM_PROVIDER, FLOWTRACE_LLM_MODEL, FLOWTRACE_LLM_API_KEY, FLOWTRACE_LLM_ENDPOINT
func FromEnv() Settings {
	s := Defaults()

	if v := os.Getenv("FLOWTRACE_LINEAGE_ENDPOINT"); v != "" {
		s.LineageEndpoint = v
	}
	if v := os.Getenv("FLOWTRACE_LINEAGE_NAMESPACE"); v != "" {
		s.LineageNamespace = v
	}
	if v := os.Getenv("FLOWTRACE_LINEAGE_API_KEY"); v != "" {
		s.LineageAPIKey = v
	}

	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		s.ServiceName = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		s.OTLPEndpoint = v
	}
	s.ConsoleTraces = envBool("FLOWTRACE_CONSOLE_TRACES", s.ConsoleTraces)

	s.PrometheusEnabled = envBool("FLOWTRACE_PROM_ENABLED", s.PrometheusEnabled)
	if v := os.Getenv("FLOWTRACE_PROM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			s.PrometheusPort = port
		}
	}

	s.WarnOnMissingIO = envBool("FLOWTRACE_WARN_ON_MISSING_IO", s.WarnOnMissingIO)

	if v := os.Getenv("FLOWTRACE_CONTRACTS_DIR"); v != "" {
		s.ContractsDir = v
	}

	if v := os.Getenv("FLOWTRACE_LLM_PROVIDER"); v != "" {
		s.LLMProvider = v
	}
	if v := os.Getenv("FLOWTRACE_LLM_MODEL"); v != "" {
		s.LLMModel = v
	}
	if v := os.Getenv("FLOWTRACE_LLM_API_KEY"); v != "" {
		s.LLMAPIKey = v
	}
	if v := os.Getenv("FLOWTRACE_LLM_ENDPOINT"); v != "" {
		s.LLMBaseURL = v
	}

	return s
}

// envBool parses a boolean environment variable, returning def when unset
// or unparseable.
func envBool(key string, def bool) bool {
	v := strings.ToLower(os.Getenv(key))
	switch v {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}
