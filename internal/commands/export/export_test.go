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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtrace/flowtrace/pkg/flow"
)

func writeFlowFile(t *testing.T) string {
	t.Helper()

	load, err := flow.NewTaskSpec("load_orders", flow.DataLoader)
	require.NoError(t, err)
	load.Outputs = append(load.Outputs, flow.DatasetRef{Namespace: "file", Name: "/tmp/orders.csv", Facets: map[string]any{}})

	clean, err := flow.NewTaskSpec("clean_orders", flow.Transformer)
	require.NoError(t, err)
	clean.Inputs = append(clean.Inputs, flow.DatasetRef{Namespace: "file", Name: "/tmp/orders.csv", Facets: map[string]any{}})

	doc := &flow.Document{
		Flow:   "orders",
		RunID:  "run-1",
		Status: flow.StatusSuccess,
		Tasks:  []*flow.TaskSpec{load, clean},
	}
	path := filepath.Join(t.TempDir(), "orders_flow_run1.json")
	require.NoError(t, doc.Save(path))
	return path
}

func TestExportMermaidToStdout(t *testing.T) {
	path := writeFlowFile(t)

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--flow-json", path, "--to", "mermaid"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "flowchart TD")
	assert.Contains(t, out.String(), "load_orders --> clean_orders")
}

func TestExportAirflowToFile(t *testing.T) {
	path := writeFlowFile(t)
	outPath := filepath.Join(t.TempDir(), "dags", "orders.py")

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--flow-json", path, "--to", "airflow", "--out", outPath})

	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "dag_id='orders'")
	assert.Contains(t, string(content), "load_orders >> clean_orders")
}

func TestExportUnsupportedTarget(t *testing.T) {
	path := writeFlowFile(t)

	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--flow-json", path, "--to", "luigi"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "luigi")
}

func TestExportMissingFlowFile(t *testing.T) {
	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--flow-json", filepath.Join(t.TempDir(), "missing.json"), "--to", "ascii"})

	assert.Error(t, cmd.Execute())
}
