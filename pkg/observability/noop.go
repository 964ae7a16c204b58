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

package observability

import (
	"context"
)

// NoopProvider is a TracerProvider that discards all spans.
type NoopProvider struct{}

// NewNoopProvider creates a provider whose tracers record nothing.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Tracer returns a no-op tracer.
func (*NoopProvider) Tracer(name string) Tracer {
	return noopTracer{}
}

// Shutdown is a no-op.
func (*NoopProvider) Shutdown(ctx context.Context) error {
	return nil
}

// ForceFlush is a no-op.
func (*NoopProvider) ForceFlush(ctx context.Context) error {
	return nil
}

// NoopTracer returns a tracer that records nothing. Useful as a default
// collaborator when tracing is not configured.
func NoopTracer() Tracer {
	return noopTracer{}
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, name string, attrs map[string]any) (context.Context, SpanHandle) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End() {}

func (noopSpan) SetStatus(code StatusCode, message string) {}

func (noopSpan) SetAttributes(attrs map[string]any) {}

func (noopSpan) RecordError(err error) {}
