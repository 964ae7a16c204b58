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

package export

import (
	"encoding/json"
	"sort"

	"github.com/flowtrace/flowtrace/pkg/flow"
)

// Graph is the dependency view of a FlowSpec document. It is always
// rebuilt from the tasks' declared inputs and outputs.
type Graph struct {
	FlowName       string
	Tasks          []*flow.TaskSpec
	Edges          []flow.Edge
	Parallelizable map[string]bool
}

// BuildGraph derives the dependency graph for a document. The document
// is not modified and its persisted edges field is ignored.
func BuildGraph(doc *flow.Document) Graph {
	return Graph{
		FlowName:       doc.Flow,
		Tasks:          doc.Tasks,
		Edges:          flow.DeriveEdges(doc.Tasks),
		Parallelizable: flow.ParallelizableTasks(doc.Tasks),
	}
}

// Roots returns task names with no incoming edge, in task order.
func (g Graph) Roots() []string {
	hasIncoming := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		hasIncoming[e.To] = true
	}
	var roots []string
	for _, t := range g.Tasks {
		if !hasIncoming[t.Name] {
			roots = append(roots, t.Name)
		}
	}
	return roots
}

// Leaves returns task names with no outgoing edge, in task order.
func (g Graph) Leaves() []string {
	hasOutgoing := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		hasOutgoing[e.From] = true
	}
	var leaves []string
	for _, t := range g.Tasks {
		if !hasOutgoing[t.Name] {
			leaves = append(leaves, t.Name)
		}
	}
	return leaves
}

// Analysis summarizes a graph for the lineage --analyze output.
type Analysis struct {
	Flow           string   `json:"flow"`
	TaskCount      int      `json:"task_count"`
	EdgeCount      int      `json:"edge_count"`
	Roots          []string `json:"roots"`
	Leaves         []string `json:"leaves"`
	Parallelizable []string `json:"parallelizable"`
}

// Analyze computes summary statistics for a graph.
func (g Graph) Analyze() Analysis {
	var parallel []string
	for name, ok := range g.Parallelizable {
		if ok {
			parallel = append(parallel, name)
		}
	}
	sort.Strings(parallel)
	a := Analysis{
		Flow:           g.FlowName,
		TaskCount:      len(g.Tasks),
		EdgeCount:      len(g.Edges),
		Roots:          g.Roots(),
		Leaves:         g.Leaves(),
		Parallelizable: parallel,
	}
	if a.Roots == nil {
		a.Roots = []string{}
	}
	if a.Leaves == nil {
		a.Leaves = []string{}
	}
	if a.Parallelizable == nil {
		a.Parallelizable = []string{}
	}
	return a
}

type jsonNode struct {
	Name          string             `json:"name"`
	ComponentType flow.ComponentType `json:"component_type"`
	Inputs        int                `json:"inputs"`
	Outputs       int                `json:"outputs"`
}

type jsonGraph struct {
	Flow  string      `json:"flow"`
	Nodes []jsonNode  `json:"nodes"`
	Edges []flow.Edge `json:"edges"`
}

// JSONGraph renders the derived graph as an indented JSON document with
// one node per task and the recomputed edge list.
func JSONGraph(doc *flow.Document) (string, error) {
	g := BuildGraph(doc)
	out := jsonGraph{Flow: g.FlowName, Nodes: []jsonNode{}, Edges: g.Edges}
	for _, t := range g.Tasks {
		out.Nodes = append(out.Nodes, jsonNode{
			Name:          t.Name,
			ComponentType: t.ComponentType,
			Inputs:        len(t.Inputs),
			Outputs:       len(t.Outputs),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// sequentialEdges chains tasks in declaration order. Used as a fallback
// when no dataset overlap produced real dependencies, so generated
// orchestrator code still runs tasks one after another.
func sequentialEdges(tasks []*flow.TaskSpec) []flow.Edge {
	var edges []flow.Edge
	for i := 0; i+1 < len(tasks); i++ {
		edges = append(edges, flow.Edge{From: tasks[i].Name, To: tasks[i+1].Name})
	}
	return edges
}

// dependencyEdges returns the derived edges, or the sequential fallback
// when derivation found none.
func dependencyEdges(tasks []*flow.TaskSpec) []flow.Edge {
	if edges := flow.DeriveEdges(tasks); len(edges) > 0 {
		return edges
	}
	return sequentialEdges(tasks)
}
