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
	"text/template"
	"time"

	"github.com/flowtrace/flowtrace/pkg/errors"
	"github.com/flowtrace/flowtrace/pkg/flow"
)

// AirflowOptions controls Airflow DAG generation. Zero values produce a
// DAG named after the flow with no schedule, starting today.
type AirflowOptions struct {
	DAGID            string
	ScheduleInterval string
	StartDate        time.Time
}

const airflowTemplate = `"""
Generated Airflow DAG from flowtrace FlowSpec
Flow: {{.FlowName}}
Generated at: {{.GeneratedAt}}
"""

from datetime import datetime, timedelta
from airflow import DAG
from airflow.decorators import task
import json

default_args = {
    'owner': 'flowtrace',
    'depends_on_past': False,
    'start_date': datetime({{.StartYear}}, {{.StartMonth}}, {{.StartDay}}),
    'email_on_failure': False,
    'email_on_retry': False,
    'retries': 1,
    'retry_delay': timedelta(minutes=5),
}

dag = DAG(
    dag_id='{{.DAGID}}',
    default_args=default_args,
    description='Generated from flowtrace FlowSpec: {{.FlowName}}',
    schedule_interval={{.ScheduleInterval}},
    catchup=False,
    max_active_runs=1,
    tags=['flowtrace', 'generated'],
)

{{range .Tasks}}
@task(dag=dag)
def {{.FuncName}}_task(**context):
    """
    Task: {{.OriginalName}}
    Component Type: {{.ComponentType}}
    """
    import logging

    logger = logging.getLogger(__name__)

    task_info = {
        'name': '{{.OriginalName}}',
        'component_type': '{{.ComponentType}}',
        'inputs': json.loads(r'''{{.InputsJSON}}'''),
        'outputs': json.loads(r'''{{.OutputsJSON}}'''),
        'contracts': json.loads(r'''{{.ContractsJSON}}'''),
        'tags': json.loads(r'''{{.TagsJSON}}'''),
    }

    logger.info(f"Starting task: {task_info['name']}")
    logger.info(f"Component type: {task_info['component_type']}")

    # Replace with the real task implementation.
    return {
        'status': 'success',
        'processed_inputs': len(task_info['inputs']),
        'generated_outputs': len(task_info['outputs']),
        'execution_time': context.get('ts'),
    }

{{end}}
# Task instances
{{range .Tasks}}{{.FuncName}} = {{.FuncName}}_task()
{{end}}
# Dependencies
{{if .Dependencies}}{{range .Dependencies}}{{.From}} >> {{.To}}
{{end}}{{else}}# No dependencies detected
{{end}}`

type airflowView struct {
	FlowName         string
	GeneratedAt      string
	DAGID            string
	ScheduleInterval string
	StartYear        int
	StartMonth       int
	StartDay         int
	Tasks            []taskPayload
	Dependencies     []flow.Edge
}

var airflowTmpl = template.Must(template.New("airflow").Parse(airflowTemplate))

// Airflow generates an Airflow DAG definition from a FlowSpec document.
// The dependency graph is re-derived from task inputs and outputs; when
// no dataset overlap exists, tasks are chained in declaration order.
func Airflow(doc *flow.Document, opts AirflowOptions) (string, error) {
	if opts.DAGID == "" {
		opts.DAGID = Identifier(doc.Flow)
	}
	if opts.ScheduleInterval == "" {
		opts.ScheduleInterval = "None"
	}
	if opts.StartDate.IsZero() {
		opts.StartDate = time.Now().UTC()
	}

	view := airflowView{
		FlowName:         doc.Flow,
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
		DAGID:            opts.DAGID,
		ScheduleInterval: opts.ScheduleInterval,
		StartYear:        opts.StartDate.Year(),
		StartMonth:       int(opts.StartDate.Month()),
		StartDay:         opts.StartDate.Day(),
	}

	for _, t := range doc.Tasks {
		payload, err := newTaskPayload(t)
		if err != nil {
			return "", &errors.ExportError{Target: "airflow", Cause: err}
		}
		view.Tasks = append(view.Tasks, payload)
	}
	for _, e := range dependencyEdges(doc.Tasks) {
		view.Dependencies = append(view.Dependencies, flow.Edge{
			From: Identifier(e.From),
			To:   Identifier(e.To),
		})
	}

	var buf bytes.Buffer
	if err := airflowTmpl.Execute(&buf, view); err != nil {
		return "", &errors.ExportError{Target: "airflow", Cause: err}
	}
	return buf.String(), nil
}

