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

// Package export turns FlowSpec documents into orchestrator code and
// graph renderings. Every transform is a pure function over the document
// and re-derives the dependency graph from task inputs and outputs, so a
// stale or tampered edges field in the file never leaks into an artifact.
package export

import "strings"

// Identifier converts an arbitrary task name into a bare lowercase
// identifier suitable for a generated function, task, or asset name.
// Non-alphanumeric runs collapse to a single underscore, leading and
// trailing underscores are stripped, and names that would start with a
// digit get a "task_" prefix. Empty input yields "unknown_task". The
// function is total and idempotent.
func Identifier(name string) string {
	return sanitize(strings.ToLower(name), "task_", "unknown_task")
}

// NodeID converts a task name into a graph node identifier for Mermaid
// and DOT output. Case is preserved so rendered diagrams stay readable;
// the sanitization rules otherwise match Identifier.
func NodeID(name string) string {
	return sanitize(name, "n_", "node")
}

func sanitize(name, digitPrefix, empty string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingUnderscore := false
	for _, r := range name {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingUnderscore = b.Len() > 0
			continue
		}
		if pendingUnderscore {
			b.WriteByte('_')
			pendingUnderscore = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out == "" {
		return empty
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = digitPrefix + out
	}
	return out
}
