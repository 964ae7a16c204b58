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
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTask(t *testing.T, name string, ct ComponentType, inputs, outputs []DatasetRef) *TaskSpec {
	t.Helper()
	task, err := NewTaskSpec(name, ct)
	require.NoError(t, err)
	if inputs != nil {
		task.Inputs = inputs
	}
	if outputs != nil {
		task.Outputs = outputs
	}
	return task
}

func TestDeriveEdgesForwardOnly(t *testing.T) {
	shared := FileDataset("shared.csv")
	// Consumer recorded before producer: recording order wins, no edge.
	consumer := mustTask(t, "consume", Transformer, []DatasetRef{shared}, nil)
	producer := mustTask(t, "produce", DataLoader, nil, []DatasetRef{shared})

	assert.Empty(t, DeriveEdges([]*TaskSpec{consumer, producer}))
	assert.Equal(t,
		[]Edge{{From: "produce", To: "consume"}},
		DeriveEdges([]*TaskSpec{producer, consumer}),
	)
}

func TestDeriveEdgesExcludesSelfEdges(t *testing.T) {
	shared := FileDataset("loop.csv")
	first := mustTask(t, "iterate", Transformer, nil, []DatasetRef{shared})
	second := mustTask(t, "iterate", Transformer, []DatasetRef{shared}, nil)
	assert.Empty(t, DeriveEdges([]*TaskSpec{first, second}))
}

func TestDeriveEdgesDeduplicates(t *testing.T) {
	a := FileDataset("a.csv")
	b := FileDataset("b.csv")
	producer := mustTask(t, "produce", DataLoader, nil, []DatasetRef{a, b})
	consumer := mustTask(t, "consume", Transformer, []DatasetRef{a, b}, nil)
	edges := DeriveEdges([]*TaskSpec{producer, consumer})
	assert.Equal(t, []Edge{{From: "produce", To: "consume"}}, edges)
}

func TestDeriveEdgesPipeline(t *testing.T) {
	raw := FileDataset("raw.csv")
	clean := FileDataset("clean.csv")
	report := FileDataset("report.csv")

	load := mustTask(t, "load", DataLoader, nil, []DatasetRef{raw})
	transform := mustTask(t, "transform", Transformer, []DatasetRef{raw}, []DatasetRef{clean})
	export := mustTask(t, "export", Exporter, []DatasetRef{clean}, []DatasetRef{report})

	edges := DeriveEdges([]*TaskSpec{load, transform, export})
	assert.Equal(t, []Edge{
		{From: "load", To: "transform"},
		{From: "transform", To: "export"},
	}, edges)
}

func TestParallelizableTasks(t *testing.T) {
	tasks := []*TaskSpec{
		mustTask(t, "load", DataLoader, nil, nil),
		mustTask(t, "transform", Transformer, nil, nil),
		mustTask(t, "enrich", Enricher, nil, nil),
		mustTask(t, "check", QualityCheck, nil, nil),
		mustTask(t, "split", Splitter, nil, nil),
		mustTask(t, "reconcile", Reconciliator, nil, nil),
		mustTask(t, "merge", Merger, nil, nil),
		mustTask(t, "export", Exporter, nil, nil),
	}
	got := ParallelizableTasks(tasks)
	assert.Equal(t, map[string]bool{
		"load":      false,
		"transform": true,
		"enrich":    true,
		"check":     true,
		"split":     true,
		"reconcile": true,
		"merge":     false,
		"export":    false,
	}, got)
}

func TestRegistryInsertionOrderAndRepeats(t *testing.T) {
	r := NewRegistry("demo", "run-1")
	for i := 0; i < 3; i++ {
		task := mustTask(t, "batch", Transformer, nil, nil)
		runID := string(rune('a' + i))
		task.RunID = &runID
		r.AddTask(task)
	}
	require.Len(t, r.Tasks(), 3)
	// Most recent wins for name lookup.
	got := r.GetTask("batch")
	require.NotNil(t, got)
	assert.Equal(t, "c", *got.RunID)
	// Specific runs remain addressable.
	byRun := r.GetTaskRun("batch", "a")
	require.NotNil(t, byRun)
	assert.Equal(t, "a", *byRun.RunID)
	assert.Nil(t, r.GetTaskRun("batch", "missing"))
}

func TestEdgeJSONShape(t *testing.T) {
	data, err := json.Marshal(Edge{From: "a", To: "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	var e Edge
	require.NoError(t, json.Unmarshal([]byte(`["x","y"]`), &e))
	assert.Equal(t, Edge{From: "x", To: "y"}, e)
}

func TestDocumentRoundTripRecomputesDerivedFields(t *testing.T) {
	shared := FileDataset("shared.csv")
	r := NewRegistry("demo", "run-1")
	r.AddTask(mustTask(t, "produce", DataLoader, nil, []DatasetRef{shared}))
	r.AddTask(mustTask(t, "consume", Transformer, []DatasetRef{shared}, nil))

	doc := r.Document()
	data, err := doc.Marshal()
	require.NoError(t, err)

	// Tamper with the persisted derived fields; load must discard them.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["edges"] = []any{[]any{"ghost", "phantom"}}
	raw["parallelizable"] = map[string]any{"ghost": true}
	tampered, err := json.Marshal(raw)
	require.NoError(t, err)

	loaded, err := ParseDocument(tampered)
	require.NoError(t, err)
	assert.Equal(t, []Edge{{From: "produce", To: "consume"}}, loaded.Edges)
	assert.Equal(t, map[string]bool{"produce": false, "consume": true}, loaded.Parallelizable)

	// Full round trip preserves every task field.
	reloaded, err := ParseDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Flow, reloaded.Flow)
	assert.Equal(t, doc.RunID, reloaded.RunID)
	require.Len(t, reloaded.Tasks, 2)
	assert.Equal(t, doc.Tasks[0].Name, reloaded.Tasks[0].Name)
	assert.Equal(t, doc.Tasks[0].ComponentType, reloaded.Tasks[0].ComponentType)
	assert.Equal(t, doc.Tasks[0].Outputs, reloaded.Tasks[0].Outputs)
}

func TestParseDocumentMissingRequiredKeys(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing flow", `{"run_id":"r","tasks":[]}`},
		{"missing run_id", `{"flow":"f","tasks":[]}`},
		{"missing tasks", `{"flow":"f","run_id":"r"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tc.body))
			assert.Error(t, err)
		})
	}
}

func TestParseDocumentRejectsInvalidComponentType(t *testing.T) {
	body := `{"flow":"f","run_id":"r","tasks":[{"name":"t","component_type":"Wizard"}]}`
	_, err := ParseDocument([]byte(body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Wizard")
}

func TestDocumentSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "demo_flow_run-1.json")
	r := NewRegistry("demo", "run-1")
	r.AddTask(mustTask(t, "only", Other, nil, nil))
	require.NoError(t, r.Document().Save(path))

	loaded, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.Flow)
	require.Len(t, loaded.Tasks, 1)
	assert.NotNil(t, loaded.Tasks[0].Inputs)
}

func TestEmptyDocumentSerializesEmptyCollections(t *testing.T) {
	r := NewRegistry("empty", "run-0")
	data, err := r.Document().Marshal()
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["tasks"])
	assert.Equal(t, []any{}, raw["edges"])
	assert.Equal(t, map[string]any{}, raw["parallelizable"])
	assert.Equal(t, "RUNNING", raw["status"])
	assert.Nil(t, raw["finished_at"])
}
