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

package flow

import (
	"context"
)

// Ambient flow and step state rides on context.Context so independent
// goroutines each see their own current flow, never a process-wide slot.

type contextKey int

const (
	flowContextKey contextKey = iota
	stepContextKey
)

func withFlow(ctx context.Context, f *Flow) context.Context {
	return context.WithValue(ctx, flowContextKey, f)
}

func withStep(ctx context.Context, s *Step) context.Context {
	return context.WithValue(ctx, stepContextKey, s)
}

// FromContext returns the ambient flow installed by Start, or nil.
func FromContext(ctx context.Context) *Flow {
	f, _ := ctx.Value(flowContextKey).(*Flow)
	return f
}

// StepFromContext returns the innermost ambient step, or nil.
func StepFromContext(ctx context.Context) *Step {
	s, _ := ctx.Value(stepContextKey).(*Step)
	return s
}

// MarkInput records ds as an input of the ambient step. Without an ambient
// step it is a no-op.
func MarkInput(ctx context.Context, ds DatasetRef) {
	if s := StepFromContext(ctx); s != nil {
		s.MarkInput(ds)
	}
}

// MarkOutput records ds as an output of the ambient step. Without an
// ambient step it is a no-op.
func MarkOutput(ctx context.Context, ds DatasetRef) {
	if s := StepFromContext(ctx); s != nil {
		s.MarkOutput(ds)
	}
}

// AddContract attaches a contract document to the ambient step. Without an
// ambient step it is a no-op.
func AddContract(ctx context.Context, doc map[string]any) {
	if s := StepFromContext(ctx); s != nil {
		s.AddContract(doc)
	}
}
