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

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultConfigIsJSON(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Format != FormatJSON {
		t.Errorf("default format = %q, want %q", cfg.Format, FormatJSON)
	}
	if cfg.Level != "info" {
		t.Errorf("default level = %q, want info", cfg.Level)
	}
}

func TestDurationAttrMillis(t *testing.T) {
	attr := Duration("duration", 1500)
	if attr.Key != "duration_ms" {
		t.Errorf("key = %q, want duration_ms", attr.Key)
	}
	if got := attr.Value.Int64(); got != 1500 {
		t.Errorf("value = %d, want 1500", got)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger.Info("flow started", slog.String(FlowKey, "pipeline"), slog.String(RunIDKey, "abc"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "flow started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "flow started")
	}
	if entry[FlowKey] != "pipeline" {
		t.Errorf("flow = %v, want %q", entry[FlowKey], "pipeline")
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatText, Output: &buf})

	logger.Info("step finished")

	if !strings.Contains(buf.String(), "step finished") {
		t.Errorf("output missing message: %q", buf.String())
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "warn", Format: FormatText, Output: &buf})

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug/info output should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn output missing: %q", out)
	}
}

func TestFromEnv_Debug(t *testing.T) {
	t.Setenv("FLOWTRACE_DEBUG", "1")

	cfg := FromEnv()
	if cfg.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Level)
	}
	if !cfg.AddSource {
		t.Error("AddSource should be enabled in debug mode")
	}
}

func TestFromEnv_LevelPrecedence(t *testing.T) {
	t.Setenv("FLOWTRACE_DEBUG", "")
	t.Setenv("FLOWTRACE_LOG_LEVEL", "error")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()
	if cfg.Level != "error" {
		t.Errorf("Level = %q, FLOWTRACE_LOG_LEVEL should win over LOG_LEVEL", cfg.Level)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithStepContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithStepContext(logger, "load_orders", "run-1").Info("marked input")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry[StepKey] != "load_orders" || entry[RunIDKey] != "run-1" {
		t.Errorf("missing step context fields: %v", entry)
	}
}
