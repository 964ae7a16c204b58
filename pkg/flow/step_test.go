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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtrace/flowtrace/pkg/lineage"
)

// recordingEmitter captures lineage events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []lineage.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e lineage.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *recordingEmitter) all() []lineage.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]lineage.Event{}, r.events...)
}

type keywordClassifier struct{}

func (keywordClassifier) Classify(name string) (ComponentType, string) {
	if name == "load_customers" {
		return DataLoader, "name matches load pattern"
	}
	return Other, "no pattern matched"
}

func startTestFlow(t *testing.T, opts ...Option) (context.Context, *Flow, *recordingEmitter) {
	t.Helper()
	emitter := &recordingEmitter{}
	opts = append([]Option{WithAutoExport(false), WithEmitter(emitter)}, opts...)
	ctx, f := Start(context.Background(), "test-flow", opts...)
	return ctx, f, emitter
}

func TestStepRejectsInvalidComponentType(t *testing.T) {
	ctx, _, _ := startTestFlow(t)
	_, _, err := StartStep(ctx, "bad", ComponentType("Wizard"))
	require.Error(t, err)
	var invalid *InvalidComponentTypeError
	assert.ErrorAs(t, err, &invalid)
}

func TestStepLifecycleRecordsTask(t *testing.T) {
	ctx, f, emitter := startTestFlow(t)

	stepCtx, s, err := StartStep(ctx, "extract", DataLoader)
	require.NoError(t, err)
	assert.Same(t, s, StepFromContext(stepCtx))

	in := APIDataset("crm", "/customers")
	out := FileDataset("customers.csv")
	s.MarkInput(in)
	s.MarkOutput(out)
	s.End(nil)

	task := f.Registry().GetTask("extract")
	require.NotNil(t, task)
	assert.Equal(t, DataLoader, task.ComponentType)
	require.NotNil(t, task.Status)
	assert.Equal(t, StatusSuccess, *task.Status)
	require.NotNil(t, task.FinishedAt)
	assert.Equal(t, []DatasetRef{in}, task.Inputs)
	assert.Equal(t, []DatasetRef{out}, task.Outputs)
	assert.Nil(t, task.Parent)

	events := emitter.all()
	require.Len(t, events, 2)
	assert.Equal(t, lineage.EventStart, events[0].Type)
	assert.Empty(t, events[0].Inputs)
	assert.Equal(t, lineage.EventComplete, events[1].Type)
	assert.Equal(t, "test-flow.extract", events[1].JobName)
	require.Len(t, events[1].Inputs, 1)
	assert.Equal(t, in.Name, events[1].Inputs[0].Name)
}

func TestStepFailureStatusAndEvent(t *testing.T) {
	ctx, f, emitter := startTestFlow(t)
	_, s, err := StartStep(ctx, "transform", Transformer)
	require.NoError(t, err)
	s.End(errors.New("bad rows"))

	task := f.Registry().GetTask("transform")
	require.NotNil(t, task)
	assert.Equal(t, StatusFailed, *task.Status)

	events := emitter.all()
	require.Len(t, events, 2)
	assert.Equal(t, lineage.EventFail, events[1].Type)
}

func TestStepEndIdempotentAndFrozen(t *testing.T) {
	ctx, f, emitter := startTestFlow(t)
	_, s, err := StartStep(ctx, "extract", DataLoader)
	require.NoError(t, err)
	s.End(nil)
	s.End(errors.New("late failure"))
	s.MarkInput(FileDataset("late.csv"))
	s.MarkOutput(FileDataset("late.csv"))
	s.AddContract(map[string]any{"suite": "late"})

	task := f.Registry().GetTask("extract")
	assert.Equal(t, StatusSuccess, *task.Status)
	assert.Empty(t, task.Inputs)
	assert.Empty(t, task.Contracts)
	assert.Len(t, emitter.all(), 2)
}

func TestNestedStepsDeriveParent(t *testing.T) {
	ctx, f, _ := startTestFlow(t)
	outerCtx, outer, err := StartStep(ctx, "orchestrate", Orchestrator)
	require.NoError(t, err)
	_, inner, err := StartStep(outerCtx, "load", DataLoader)
	require.NoError(t, err)
	inner.End(nil)
	outer.End(nil)

	innerTask := f.Registry().GetTask("load")
	require.NotNil(t, innerTask)
	require.NotNil(t, innerTask.Parent)
	assert.Equal(t, "orchestrate", *innerTask.Parent)
	assert.Nil(t, f.Registry().GetTask("orchestrate").Parent)
}

func TestRepeatedStepNamesAreDistinctRuns(t *testing.T) {
	ctx, f, _ := startTestFlow(t)
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		_, s, err := StartStep(ctx, "batch", Transformer)
		require.NoError(t, err)
		seen[s.RunID()] = true
		s.End(nil)
	}
	assert.Len(t, seen, 3)
	tasks := f.Registry().Tasks()
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, "batch", task.Name)
	}
}

func TestLoadTransformExportScenario(t *testing.T) {
	ctx, f, _ := startTestFlow(t)
	raw := FileDataset("raw.csv")
	clean := FileDataset("clean.csv")
	report := FileDataset("report.pdf")

	err := RunStep(ctx, "load", DataLoader, func(ctx context.Context, s *Step) error {
		MarkOutput(ctx, raw)
		return nil
	})
	require.NoError(t, err)
	err = RunStep(ctx, "transform", Transformer, func(ctx context.Context, s *Step) error {
		MarkInput(ctx, raw)
		MarkOutput(ctx, clean)
		return nil
	})
	require.NoError(t, err)
	err = RunStep(ctx, "export", Exporter, func(ctx context.Context, s *Step) error {
		MarkInput(ctx, clean)
		MarkOutput(ctx, report)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []Edge{
		{From: "load", To: "transform"},
		{From: "transform", To: "export"},
	}, f.Registry().DeriveEdges())
	assert.Equal(t, map[string]bool{
		"load":      false,
		"transform": true,
		"export":    false,
	}, f.Registry().GetParallelizableTasks())
}

func TestRunStepPropagatesPanicAfterBookkeeping(t *testing.T) {
	ctx, f, emitter := startTestFlow(t)
	assert.Panics(t, func() {
		_ = RunStep(ctx, "explode", Transformer, func(ctx context.Context, s *Step) error {
			panic("boom")
		})
	})
	task := f.Registry().GetTask("explode")
	require.NotNil(t, task)
	assert.Equal(t, StatusFailed, *task.Status)
	events := emitter.all()
	require.Len(t, events, 2)
	assert.Equal(t, lineage.EventFail, events[1].Type)
}

func TestAutoComponentTypeUsesClassifier(t *testing.T) {
	ctx, f, emitter := startTestFlow(t, WithClassifier(keywordClassifier{}))
	_, s, err := StartStep(ctx, "load_customers", AutoComponentType)
	require.NoError(t, err)
	assert.Equal(t, DataLoader, s.ComponentType())
	s.End(nil)

	task := f.Registry().GetTask("load_customers")
	assert.Equal(t, DataLoader, task.ComponentType)

	events := emitter.all()
	classification, ok := events[1].RunFacets["classification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "auto", classification["method"])
}

func TestAutoComponentTypeWithoutClassifierFallsBack(t *testing.T) {
	ctx, _, _ := startTestFlow(t)
	_, s, err := StartStep(ctx, "mystery", AutoComponentType)
	require.NoError(t, err)
	assert.Equal(t, Other, s.ComponentType())
	s.End(nil)
}

func TestStepFacetsFromMetricsSource(t *testing.T) {
	src := NewStaticMetricsSource()
	wall := 12.5
	attempts := 3
	retries := 2
	src.Add(MetricsRow{
		Operation:       "enrich",
		WallTimeSeconds: &wall,
		Attempts:        &attempts,
		Retries:         &retries,
	})

	ctx, _, emitter := startTestFlow(t, WithMetricsSource(src))
	_, s, err := StartStep(ctx, "enrich", Enricher)
	require.NoError(t, err)
	s.End(nil)

	events := emitter.all()
	require.Len(t, events, 2)
	facets := events[1].RunFacets
	perf, ok := facets["performance"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 12.5, perf["wall_time_seconds"])
	rel, ok := facets["reliability"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), rel["attempts"])
	assert.Equal(t, float64(2), rel["retries"])
}

func TestStepFacetsWithoutMetricsSource(t *testing.T) {
	ctx, _, emitter := startTestFlow(t)
	_, s, err := StartStep(ctx, "plain", Transformer)
	require.NoError(t, err)
	s.End(nil)

	facets := emitter.all()[1].RunFacets
	perf, ok := facets["performance"].(map[string]any)
	require.True(t, ok)
	assert.NotNil(t, perf["wall_time_seconds"])
	assert.NotContains(t, facets, "reliability")
	assert.Contains(t, facets, "classification")
}

func TestStepContractsFacet(t *testing.T) {
	ctx, f, emitter := startTestFlow(t)
	_, s, err := StartStep(ctx, "check", QualityCheck)
	require.NoError(t, err)
	contract := map[string]any{"type": "data_contract", "suite": "orders"}
	s.AddContract(contract)
	s.End(nil)

	task := f.Registry().GetTask("check")
	require.Len(t, task.Contracts, 1)
	assert.Equal(t, "orders", task.Contracts[0]["suite"])

	facets := emitter.all()[1].RunFacets
	assert.Contains(t, facets, "contracts")
}

func TestStepWithoutFlow(t *testing.T) {
	ctx, s, err := StartStep(context.Background(), "orphan", Transformer)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Same(t, s, StepFromContext(ctx))
	assert.NotPanics(t, func() {
		s.MarkInput(FileDataset("in.csv"))
		s.End(nil)
	})
}
