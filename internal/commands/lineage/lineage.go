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

// Package lineage implements the flowtrace lineage command.
package lineage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowtrace/flowtrace/internal/commands/shared"
	"github.com/flowtrace/flowtrace/pkg/errors"
	"github.com/flowtrace/flowtrace/pkg/export"
	"github.com/flowtrace/flowtrace/pkg/flow"
)

type options struct {
	flowJSON string
	format   string
	output   string
	analyze  bool
}

// NewCommand creates the lineage command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Render and analyze data lineage",
		Long: `Show the dependency graph derived from a FlowSpec's task inputs and
outputs. The graph is always recomputed from the tasks, never read from
the document's edges field.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.flowJSON, "flow-json", "", "Path to FlowSpec JSON file (default: newest *_flow_*.json)")
	cmd.Flags().StringVar(&opts.format, "format", "ascii", "Output format: ascii|mermaid|dot|json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (prints to stdout if not set)")
	cmd.Flags().BoolVar(&opts.analyze, "analyze", false, "Show graph analysis instead of the rendering")

	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	path, err := shared.ResolveFlowFile(opts.flowJSON)
	if err != nil {
		return shared.NewFailureError("no FlowSpec file", err)
	}

	doc, err := flow.LoadDocument(path)
	if err != nil {
		return shared.NewFailureError(fmt.Sprintf("loading %s", path), err)
	}

	if opts.analyze {
		return printAnalysis(cmd, doc)
	}

	var content string
	switch opts.format {
	case "ascii":
		content = export.ASCII(doc)
	case "mermaid":
		content = export.Mermaid(doc, "TD")
	case "dot":
		content = export.DOT(doc)
	case "json":
		content, err = export.JSONGraph(doc)
		if err != nil {
			return shared.NewFailureError("rendering graph", err)
		}
	default:
		return shared.NewFailureError("invalid format", &errors.ValidationError{
			Field:   "format",
			Message: fmt.Sprintf("unsupported format %q", opts.format),
		})
	}

	if opts.output == "" {
		cmd.Print(content)
		return nil
	}
	if err := os.WriteFile(opts.output, []byte(content), 0o644); err != nil {
		return shared.NewFailureError("writing output", err)
	}
	if !shared.GetQuiet() {
		cmd.Printf("Lineage written to %s\n", opts.output)
	}
	return nil
}

func printAnalysis(cmd *cobra.Command, doc *flow.Document) error {
	a := export.BuildGraph(doc).Analyze()

	if shared.GetJSON() {
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return shared.NewFailureError("encoding analysis", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Flow: %s\n", a.Flow)
	cmd.Printf("  tasks:          %d\n", a.TaskCount)
	cmd.Printf("  edges:          %d\n", a.EdgeCount)
	cmd.Printf("  roots:          %s\n", joinOrNone(a.Roots))
	cmd.Printf("  leaves:         %s\n", joinOrNone(a.Leaves))
	cmd.Printf("  parallelizable: %s\n", joinOrNone(a.Parallelizable))
	return nil
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
