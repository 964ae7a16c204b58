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

// Package export implements the flowtrace export command.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flowtrace/flowtrace/internal/commands/shared"
	"github.com/flowtrace/flowtrace/pkg/errors"
	"github.com/flowtrace/flowtrace/pkg/export"
	"github.com/flowtrace/flowtrace/pkg/flow"
)

type options struct {
	flowJSON string
	target   string
	output   string
	dagID    string
	schedule string
	group    string
	flowName string
}

// NewCommand creates the export command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a FlowSpec to orchestration platforms",
		Long: `Generate orchestrator code or a graph rendering from a FlowSpec
document. Targets: airflow, prefect, dagster, mermaid, dot, ascii.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.flowJSON, "flow-json", "", "Path to FlowSpec JSON file (default: newest *_flow_*.json)")
	cmd.Flags().StringVar(&opts.target, "to", "", "Target format: airflow|prefect|dagster|mermaid|dot|ascii")
	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "Output file path (prints to stdout if not set)")
	cmd.Flags().StringVar(&opts.dagID, "dag-id", "", "DAG ID for Airflow export")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "None", "Schedule interval for Airflow DAG")
	cmd.Flags().StringVar(&opts.group, "group-name", "", "Asset group name for Dagster export")
	cmd.Flags().StringVar(&opts.flowName, "flow-name", "", "Flow name override for Prefect export")
	_ = cmd.MarkFlagRequired("to")

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

	content, err := generate(doc, opts)
	if err != nil {
		return shared.NewFailureError("export failed", err)
	}

	if opts.output == "" {
		cmd.Print(content)
		return nil
	}
	if err := writeArtifact(opts.output, content); err != nil {
		return shared.NewFailureError("writing output", &errors.ExportError{Target: opts.target, Path: opts.output, Cause: err})
	}
	if !shared.GetQuiet() {
		cmd.Printf("Exported %s to %s (%s)\n", doc.Flow, opts.output, opts.target)
	}
	return nil
}

func generate(doc *flow.Document, opts options) (string, error) {
	switch opts.target {
	case "airflow":
		return export.Airflow(doc, export.AirflowOptions{
			DAGID:            opts.dagID,
			ScheduleInterval: opts.schedule,
		})
	case "prefect":
		return export.Prefect(doc, export.PrefectOptions{FlowName: opts.flowName})
	case "dagster":
		return export.Dagster(doc, export.DagsterOptions{GroupName: opts.group})
	case "mermaid":
		return export.Mermaid(doc, "TD"), nil
	case "dot":
		return export.DOT(doc), nil
	case "ascii":
		return export.ASCII(doc), nil
	default:
		return "", &errors.ValidationError{Field: "to", Message: fmt.Sprintf("unsupported target %q", opts.target)}
	}
}

func writeArtifact(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
