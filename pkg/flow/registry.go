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
	"fmt"
	"sync"
)

// Edge is a producer→consumer dependency between two task names, derived
// from dataset identity. It serializes as a two-element JSON array.
type Edge struct {
	From string
	To   string
}

// MarshalJSON renders the edge as ["from", "to"].
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.From, e.To})
}

// UnmarshalJSON accepts the two-element array form.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("edge must be a [producer, consumer] pair: %w", err)
	}
	e.From, e.To = pair[0], pair[1]
	return nil
}

// DeriveEdges computes the dependency edges implied by dataset identity
// across an ordered task list. For every pair (i, j) with i before j, an
// output of task i matching an input of task j by (namespace, name) yields
// an edge from i's name to j's name. Only forward pairs are considered,
// self-edges are excluded, and duplicates collapse to the first occurrence
// so the result order is deterministic.
func DeriveEdges(tasks []*TaskSpec) []Edge {
	edges := []Edge{}
	seen := map[Edge]bool{}
	for i, producer := range tasks {
		for _, consumer := range tasks[i+1:] {
			if producer.Name == consumer.Name {
				continue
			}
			if !datasetsOverlap(producer.Outputs, consumer.Inputs) {
				continue
			}
			edge := Edge{From: producer.Name, To: consumer.Name}
			if seen[edge] {
				continue
			}
			seen[edge] = true
			edges = append(edges, edge)
		}
	}
	return edges
}

func datasetsOverlap(outputs, inputs []DatasetRef) bool {
	for _, out := range outputs {
		for _, in := range inputs {
			if out.SameIdentity(in) {
				return true
			}
		}
	}
	return false
}

// ParallelizableTasks classifies each recorded task name by whether its
// component type belongs to the inherently parallel-safe subset. When the
// same name was recorded multiple times, the last occurrence wins.
func ParallelizableTasks(tasks []*TaskSpec) map[string]bool {
	out := map[string]bool{}
	for _, t := range tasks {
		out[t.Name] = t.ComponentType.ParallelSafe()
	}
	return out
}

// Registry owns the durable state of one flow execution: its identity, the
// ordered task list, and the stack of currently open step names used for
// parent derivation. All mutation goes through the registry so concurrent
// steps under the same flow preserve insertion order and stack balance.
type Registry struct {
	mu         sync.Mutex
	name       string
	runID      string
	tasks      []*TaskSpec
	stack      []string
	startedAt  *string
	finishedAt *string
	status     Status
}

// NewRegistry creates a registry for a flow execution in the RUNNING
// state with started_at stamped to now.
func NewRegistry(name, runID string) *Registry {
	started := nowZulu()
	return &Registry{
		name:      name,
		runID:     runID,
		status:    StatusRunning,
		startedAt: &started,
	}
}

// Name returns the flow name.
func (r *Registry) Name() string { return r.name }

// RunID returns the flow execution identifier.
func (r *Registry) RunID() string { return r.runID }

// Status returns the current flow status.
func (r *Registry) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Tasks returns a snapshot of the ordered task list. The returned slice is
// a copy; the records it points to are shared.
func (r *Registry) Tasks() []*TaskSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*TaskSpec, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// AddTask appends an externally built task record. The list is never
// reordered or deduplicated; repeated names are distinct executions.
func (r *Registry) AddTask(t *TaskSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
}

// GetTask returns the most recently recorded task with the given name, or
// nil if none exists.
func (r *Registry) GetTask(name string) *TaskSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.tasks) - 1; i >= 0; i-- {
		if r.tasks[i].Name == name {
			return r.tasks[i]
		}
	}
	return nil
}

// GetTaskRun returns the task with the given name and run identifier, or
// nil if none exists.
func (r *Registry) GetTaskRun(name, runID string) *TaskSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.tasks) - 1; i >= 0; i-- {
		t := r.tasks[i]
		if t.Name == name && t.RunID != nil && *t.RunID == runID {
			return t
		}
	}
	return nil
}

// beginTask records step entry: the task inherits the current stack top as
// its parent, joins the ordered list, and its name is pushed as the new
// top.
func (r *Registry) beginTask(t *TaskSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.stack); n > 0 {
		parent := r.stack[n-1]
		t.Parent = &parent
	}
	r.tasks = append(r.tasks, t)
	r.stack = append(r.stack, t.Name)
}

// finishTask seals the task record for the given execution and pops the
// step off the active stack if it is still the top. Out-of-order exits
// leave the stack untouched rather than corrupting other entries.
func (r *Registry) finishTask(t *TaskSpec, status Status, inputs, outputs []DatasetRef, contracts []map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	finished := nowZulu()
	t.Status = &status
	t.FinishedAt = &finished
	t.Inputs = inputs
	t.Outputs = outputs
	t.Contracts = contracts
	if n := len(r.stack); n > 0 && r.stack[n-1] == t.Name {
		r.stack = r.stack[:n-1]
	}
}

// finish stamps the terminal flow status and finished_at.
func (r *Registry) finish(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	finished := nowZulu()
	r.status = status
	r.finishedAt = &finished
}

// DeriveEdges recomputes the dependency edges from the current task list.
func (r *Registry) DeriveEdges() []Edge {
	return DeriveEdges(r.Tasks())
}

// GetParallelizableTasks recomputes the parallel-safety classification for
// the current task list.
func (r *Registry) GetParallelizableTasks() map[string]bool {
	return ParallelizableTasks(r.Tasks())
}

// Document snapshots the registry into a serializable FlowSpec document
// with edges and parallelizable freshly derived.
func (r *Registry) Document() *Document {
	r.mu.Lock()
	tasks := make([]*TaskSpec, len(r.tasks))
	copy(tasks, r.tasks)
	doc := &Document{
		Flow:       r.name,
		RunID:      r.runID,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
		Status:     r.status,
		Tasks:      tasks,
	}
	r.mu.Unlock()
	doc.Recompute()
	return doc
}
