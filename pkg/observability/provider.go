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

// Package observability provides the tracing interfaces flow execution
// records against. Implementations are selected at configuration time; the
// default is a no-op so instrumented code never needs to probe for a
// backend at runtime.
package observability

import (
	"context"
)

// StatusCode indicates a span's final outcome.
type StatusCode int

const (
	// StatusCodeUnset means no status was explicitly set.
	StatusCodeUnset StatusCode = iota
	// StatusCodeOK indicates successful completion.
	StatusCodeOK
	// StatusCodeError indicates the span's operation failed.
	StatusCodeError
)

// TracerProvider is the main interface for creating and managing traces.
type TracerProvider interface {
	// Tracer returns a tracer for the given instrumentation scope.
	// The name should identify the instrumenting package (e.g., "flowtrace.step").
	Tracer(name string) Tracer

	// Shutdown flushes any pending spans and releases resources.
	// Calling Shutdown multiple times is safe.
	Shutdown(ctx context.Context) error

	// ForceFlush exports all pending spans synchronously.
	ForceFlush(ctx context.Context) error
}

// Tracer creates spans within a specific instrumentation scope.
type Tracer interface {
	// Start begins a new span as a child of the context's current span.
	// If the context contains no span, this creates a root span.
	// The returned context contains the new span for propagation.
	Start(ctx context.Context, name string, attrs map[string]any) (context.Context, SpanHandle)
}

// SpanHandle is an in-flight span that can be annotated and closed.
type SpanHandle interface {
	// End marks the span as complete and records it.
	// Calling End multiple times is safe (subsequent calls are no-ops).
	End()

	// SetStatus sets the span's final status.
	SetStatus(code StatusCode, message string)

	// SetAttributes adds key-value metadata to the span.
	// Later calls with the same key overwrite earlier values.
	SetAttributes(attrs map[string]any)

	// RecordError records an error that occurred during span execution.
	RecordError(err error)
}
