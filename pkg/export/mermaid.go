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

var mermaidStyles = map[flow.ComponentType]string{
	flow.DataLoader:    "fill:#e1f5fe,stroke:#01579b",
	flow.Transformer:   "fill:#f3e5f5,stroke:#4a148c",
	flow.Enricher:      "fill:#e8f5e8,stroke:#1b5e20",
	flow.Reconciliator: "fill:#fff3e0,stroke:#e65100",
	flow.Exporter:      "fill:#fce4ec,stroke:#880e4f",
	flow.QualityCheck:  "fill:#fffde7,stroke:#f57f17",
	flow.Splitter:      "fill:#e0f2f1,stroke:#00695c",
	flow.Merger:        "fill:#f1f8e9,stroke:#33691e",
	flow.Orchestrator:  "fill:#f5f5f5,stroke:#424242",
	flow.Other:         "fill:#ffffff,stroke:#757575",
}

// Mermaid renders the derived dependency graph as a Mermaid flowchart.
// Direction is one of TD, LR, BT, RL and defaults to TD. An empty task
// list produces a single placeholder node.
func Mermaid(doc *flow.Document, direction string) string {
	if direction == "" {
		direction = "TD"
	}
	if len(doc.Tasks) == 0 {
		return fmt.Sprintf("flowchart %s\n    Start[No tasks in %s]\n", direction, doc.Flow)
	}

	g := BuildGraph(doc)
	var b strings.Builder
	fmt.Fprintf(&b, "flowchart %s\n", direction)
	fmt.Fprintf(&b, "    %%%% Flow: %s\n\n", g.FlowName)

	for _, t := range g.Tasks {
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", NodeID(t.Name), t.Name)
	}
	b.WriteString("\n")

	edges := dependencyEdges(g.Tasks)
	if len(edges) > 0 {
		b.WriteString("    %% Dependencies\n")
		for _, e := range edges {
			fmt.Fprintf(&b, "    %s --> %s\n", NodeID(e.From), NodeID(e.To))
		}
		b.WriteString("\n")
	}

	b.WriteString("    %% Styling\n")
	for _, t := range g.Tasks {
		style, ok := mermaidStyles[t.ComponentType]
		if !ok {
			style = mermaidStyles[flow.Other]
		}
		fmt.Fprintf(&b, "    style %s %s\n", NodeID(t.Name), style)
	}
	return b.String()
}
