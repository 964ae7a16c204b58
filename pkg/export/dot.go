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
	"fmt"
	"strings"

	"github.com/flowtrace/flowtrace/pkg/flow"
)

var dotColors = map[flow.ComponentType]string{
	flow.DataLoader:    "lightblue",
	flow.Transformer:   "lightpink",
	flow.Enricher:      "lightgreen",
	flow.Reconciliator: "orange",
	flow.Exporter:      "lightcoral",
	flow.QualityCheck:  "lightyellow",
	flow.Splitter:      "lightcyan",
	flow.Merger:        "lightgray",
	flow.Orchestrator:  "lavender",
	flow.Other:         "white",
}

// DOT renders the derived dependency graph in Graphviz DOT format. An
// empty task list yields a valid digraph with no nodes.
func DOT(doc *flow.Document) string {
	g := BuildGraph(doc)

	var b strings.Builder
	b.WriteString("digraph flowtrace_graph {\n")
	fmt.Fprintf(&b, "    label=%q;\n", g.FlowName)
	b.WriteString("    labelloc=t;\n")
	b.WriteString("    fontsize=16;\n")
	b.WriteString("    rankdir=TD;\n")
	b.WriteString("    node [shape=box, style=filled];\n\n")

	for _, t := range g.Tasks {
		color, ok := dotColors[t.ComponentType]
		if !ok {
			color = dotColors[flow.Other]
		}
		label := fmt.Sprintf("%s\\n%s", t.ComponentType, t.Name)
		fmt.Fprintf(&b, "    %s [label=\"%s\", fillcolor=%s];\n", NodeID(t.Name), label, color)
	}
	if len(g.Tasks) > 0 {
		b.WriteString("\n")
	}

	for _, e := range dependencyEdges(g.Tasks) {
		fmt.Fprintf(&b, "    %s -> %s;\n", NodeID(e.From), NodeID(e.To))
	}

	b.WriteString("}\n")
	return b.String()
}
