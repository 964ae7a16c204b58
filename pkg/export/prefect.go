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
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/flowtrace/flowtrace/pkg/errors"
	"github.com/flowtrace/flowtrace/pkg/flow"
)

// PrefectOptions controls Prefect flow generation.
type PrefectOptions struct {
	// FlowName overrides the generated flow's display name. Defaults to
	// the document's flow name.
	FlowName string
}

const prefectTemplate = `"""
Generated Prefect flow from flowtrace FlowSpec
Flow: {{.FlowName}}
Generated at: {{.GeneratedAt}}
"""

from prefect import flow, task, get_run_logger
from typing import Any, Dict
import json

{{range .Tasks}}
@task(
    name="{{.OriginalName}}",
    description="{{.ComponentType}} task generated from flowtrace",
    retries=2,
    retry_delay_seconds=30,
    tags=["{{.ComponentTypeLower}}", "flowtrace", "generated"],
)
def {{.FuncName}}() -> Dict[str, Any]:
    """
    Task: {{.OriginalName}}
    Component Type: {{.ComponentType}}
    """
    logger = get_run_logger()

    task_info = {
        'name': '{{.OriginalName}}',
        'component_type': '{{.ComponentType}}',
        'inputs': json.loads(r'''{{.InputsJSON}}'''),
        'outputs': json.loads(r'''{{.OutputsJSON}}'''),
        'contracts': json.loads(r'''{{.ContractsJSON}}'''),
        'tags': json.loads(r'''{{.TagsJSON}}'''),
    }

    logger.info(f"Executing task: {task_info['name']}")
    for input_ds in task_info['inputs']:
        logger.info(f"Input: {input_ds.get('namespace')}:{input_ds.get('name')}")
    for output_ds in task_info['outputs']:
        logger.info(f"Output: {output_ds.get('namespace')}:{output_ds.get('name')}")

    # Replace with the real task implementation.
    return {'status': 'completed'}

{{end}}
@flow(
    name="{{.FlowName}}",
    description="Generated from flowtrace FlowSpec: {{.OriginalFlowName}}",
    retries=1,
    retry_delay_seconds=60,
)
def {{.FlowFuncName}}():
    """
    {{.FlowName}} with {{.TaskCount}} tasks: {{.ComponentSummary}}
    """
    logger = get_run_logger()
    logger.info("Starting flow: {{.FlowName}}")

{{if .Tasks}}{{range .Tasks}}    {{.FuncName}}_result = {{.FuncName}}()
{{end}}{{else}}    pass
{{end}}
    logger.info("Flow {{.FlowName}} completed")
    return {"status": "success", "tasks_executed": {{.TaskCount}}}

if __name__ == "__main__":
    result = {{.FlowFuncName}}()
    print(f"Flow execution result: {result}")
`

type prefectTask struct {
	FuncName           string
	OriginalName       string
	ComponentType      flow.ComponentType
	ComponentTypeLower string
	InputsJSON         string
	OutputsJSON        string
	ContractsJSON      string
	TagsJSON           string
}

type prefectView struct {
	FlowName         string
	OriginalFlowName string
	FlowFuncName     string
	GeneratedAt      string
	TaskCount        int
	ComponentSummary string
	Tasks            []prefectTask
}

var prefectTmpl = template.Must(template.New("prefect").Parse(prefectTemplate))

// Prefect generates a Prefect flow definition from a FlowSpec document.
// Tasks execute in declaration order, which respects the forward-only
// dependency derivation used everywhere else.
func Prefect(doc *flow.Document, opts PrefectOptions) (string, error) {
	name := opts.FlowName
	if name == "" {
		name = doc.Flow
	}

	view := prefectView{
		FlowName:         name,
		OriginalFlowName: doc.Flow,
		FlowFuncName:     Identifier(name),
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
		TaskCount:        len(doc.Tasks),
		ComponentSummary: componentSummary(doc.Tasks),
	}

	for _, t := range doc.Tasks {
		at, err := newTaskPayload(t)
		if err != nil {
			return "", &errors.ExportError{Target: "prefect", Cause: err}
		}
		view.Tasks = append(view.Tasks, prefectTask{
			FuncName:           at.FuncName,
			OriginalName:       at.OriginalName,
			ComponentType:      at.ComponentType,
			ComponentTypeLower: strings.ToLower(string(at.ComponentType)),
			InputsJSON:         at.InputsJSON,
			OutputsJSON:        at.OutputsJSON,
			ContractsJSON:      at.ContractsJSON,
			TagsJSON:           at.TagsJSON,
		})
	}

	var buf bytes.Buffer
	if err := prefectTmpl.Execute(&buf, view); err != nil {
		return "", &errors.ExportError{Target: "prefect", Cause: err}
	}
	return buf.String(), nil
}

func componentSummary(tasks []*flow.TaskSpec) string {
	if len(tasks) == 0 {
		return "no tasks"
	}
	counts := make(map[flow.ComponentType]int)
	for _, t := range tasks {
		counts[t.ComponentType]++
	}
	types := make([]string, 0, len(counts))
	for ct := range counts {
		types = append(types, string(ct))
	}
	sort.Strings(types)
	parts := make([]string, 0, len(types))
	for _, ct := range types {
		parts = append(parts, fmt.Sprintf("%d %s", counts[flow.ComponentType(ct)], ct))
	}
	return strings.Join(parts, ", ")
}
