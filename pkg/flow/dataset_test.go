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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDatasetAbsolutePath(t *testing.T) {
	ds := FileDataset("data/input.csv")
	assert.Equal(t, "file", ds.Namespace)
	assert.True(t, filepath.IsAbs(ds.Name), "name should be absolute, got %q", ds.Name)
	assert.NotNil(t, ds.Facets)
}

func TestFileDatasetSamePathSameIdentity(t *testing.T) {
	a := FileDataset("data/input.csv")
	b := FileDataset("./data/input.csv")
	assert.True(t, a.SameIdentity(b))
}

func TestAPIDataset(t *testing.T) {
	ds := APIDataset("geocoder", "/v1/lookup")
	assert.Equal(t, "api", ds.Namespace)
	assert.Equal(t, "geocoder:/v1/lookup", ds.Name)
}

func TestTableDataset(t *testing.T) {
	ds := TableDataset("sales", "orders", "https://warehouse.example.com/api")
	assert.Equal(t, "table://warehouse.example.com", ds.Namespace)
	assert.Equal(t, "dataset/sales/table/orders", ds.Name)

	plain := TableDataset("sales", "orders", "")
	assert.Equal(t, "table", plain.Namespace)
}

func TestTableDatasetFromDescriptor(t *testing.T) {
	ref := TableDatasetFromDescriptor(map[string]any{
		"table": map[string]any{"datasetId": "sales", "id": "orders"},
	}, "")
	require.NotNil(t, ref)
	assert.Equal(t, "dataset/sales/table/orders", ref.Name)

	// Missing keys default rather than fail.
	ref = TableDatasetFromDescriptor(map[string]any{
		"table": map[string]any{},
	}, "")
	require.NotNil(t, ref)
	assert.Equal(t, "dataset/unknown/table/unknown", ref.Name)
}

func TestTableDatasetFromDescriptorFailsSoft(t *testing.T) {
	assert.Nil(t, TableDatasetFromDescriptor(map[string]any{}, ""))
	assert.Nil(t, TableDatasetFromDescriptor(map[string]any{"table": "not a map"}, ""))
}

func TestAttachFacetPreservesExisting(t *testing.T) {
	ds := FileDataset("a.csv")
	ds.AttachFacet("quality", map[string]any{"score": 0.9})
	ds.AttachFacet("owner", "data-team")
	assert.Len(t, ds.Facets, 2)
	assert.Equal(t, "data-team", ds.Facets["owner"])
}

type fakeTable struct {
	cols []Column
	rows int
}

func (f fakeTable) Columns() []Column { return f.cols }
func (f fakeTable) RowCount() int     { return f.rows }

type panickyTable struct{}

func (panickyTable) Columns() []Column { panic("introspection exploded") }
func (panickyTable) RowCount() int     { return 0 }

func TestAttachSchemaFacet(t *testing.T) {
	ds := FileDataset("a.csv")
	AttachSchemaFacet(&ds, fakeTable{
		cols: []Column{{Name: "id", Type: "int64"}, {Name: "name", Type: "string"}},
		rows: 42,
	})
	schema, ok := ds.Facets["schema"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, schema["fields"], 2)
	stats, ok := ds.Facets["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42, stats["rowCount"])
	assert.Equal(t, 2, stats["columnCount"])
}

func TestAttachSchemaFacetNeverRaises(t *testing.T) {
	ds := FileDataset("a.csv")
	assert.NotPanics(t, func() {
		AttachSchemaFacet(&ds, panickyTable{})
	})
	assert.NotContains(t, ds.Facets, "schema")

	assert.NotPanics(t, func() {
		AttachSchemaFacet(nil, fakeTable{})
		AttachSchemaFacet(&ds, nil)
	})
}
