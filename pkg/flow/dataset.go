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
	"fmt"
	"net/url"
	"path/filepath"
)

// DatasetRef identifies a dataset consumed or produced by a step. Identity
// for lineage purposes is the (Namespace, Name) pair; Facets carry optional
// metadata and never participate in identity.
type DatasetRef struct {
	Namespace string         `json:"namespace"`
	Name      string         `json:"name"`
	Facets    map[string]any `json:"facets"`
}

// Key returns the identity string used for dataset matching.
func (d DatasetRef) Key() string {
	return d.Namespace + ":" + d.Name
}

// SameIdentity reports whether two refs name the same dataset.
func (d DatasetRef) SameIdentity(other DatasetRef) bool {
	return d.Namespace == other.Namespace && d.Name == other.Name
}

// AttachFacet adds or replaces a single facet on the ref. Existing facets
// under other keys are preserved.
func (d *DatasetRef) AttachFacet(key string, value any) {
	if d.Facets == nil {
		d.Facets = map[string]any{}
	}
	d.Facets[key] = value
}

// FileDataset builds a ref for a local file. The path is resolved to an
// absolute path so the same file referenced through different relative
// paths yields a single dataset identity.
func FileDataset(path string) DatasetRef {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return DatasetRef{Namespace: "file", Name: abs, Facets: map[string]any{}}
}

// APIDataset builds a ref for a remote API interaction, named
// "service:endpoint" under the "api" namespace.
func APIDataset(service, endpoint string) DatasetRef {
	return DatasetRef{
		Namespace: "api",
		Name:      service + ":" + endpoint,
		Facets:    map[string]any{},
	}
}

// TableDataset builds a ref for a warehouse table. When baseURL parses to a
// URL with a host the namespace becomes "table://<host>", otherwise the
// plain "table" namespace is used.
func TableDataset(datasetID, tableID, baseURL string) DatasetRef {
	ns := "table"
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			ns = "table://" + u.Host
		}
	}
	return DatasetRef{
		Namespace: ns,
		Name:      fmt.Sprintf("dataset/%s/table/%s", datasetID, tableID),
		Facets:    map[string]any{},
	}
}

// TableDatasetFromDescriptor extracts table coordinates from a decoded API
// response descriptor. It fails soft: if the descriptor does not carry a
// "table" object, nil is returned instead of an error. Missing identifier
// fields default to "unknown".
func TableDatasetFromDescriptor(descriptor map[string]any, baseURL string) *DatasetRef {
	raw, ok := descriptor["table"]
	if !ok {
		return nil
	}
	table, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	ref := TableDataset(descriptorField(table, "datasetId"), descriptorField(table, "id"), baseURL)
	return &ref
}

func descriptorField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return "unknown"
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%v", s)
	default:
		return fmt.Sprint(v)
	}
}

// Column describes one column of a tabular dataset.
type Column struct {
	Name string
	Type string
}

// Tabular is the minimal surface a table-like value must expose for schema
// capture. Implementations wrap whatever in-memory table representation the
// caller uses.
type Tabular interface {
	Columns() []Column
	RowCount() int
}

// AttachSchemaFacet captures schema and row-count facets from a tabular
// value onto the ref. Capture is strictly best effort: a panicking or
// misbehaving Tabular implementation leaves the ref unchanged and never
// propagates to the caller.
func AttachSchemaFacet(d *DatasetRef, t Tabular) {
	defer func() {
		_ = recover()
	}()
	if d == nil || t == nil {
		return
	}
	cols := t.Columns()
	if len(cols) == 0 {
		return
	}
	fields := make([]map[string]any, 0, len(cols))
	for _, c := range cols {
		fields = append(fields, map[string]any{"name": c.Name, "type": c.Type})
	}
	d.AttachFacet("schema", map[string]any{"fields": fields})
	d.AttachFacet("stats", map[string]any{
		"rowCount":    t.RowCount(),
		"columnCount": len(cols),
	})
}
