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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowtrace/flowtrace/pkg/errors"
)

// Document is the durable FlowSpec artifact. The edges and parallelizable
// fields are derived views over tasks: they are recomputed on every
// serialization and never trusted from a loaded file.
type Document struct {
	Flow           string          `json:"flow"`
	RunID          string          `json:"run_id"`
	StartedAt      *string         `json:"started_at"`
	FinishedAt     *string         `json:"finished_at"`
	Status         Status          `json:"status"`
	Tasks          []*TaskSpec     `json:"tasks"`
	Edges          []Edge          `json:"edges"`
	Parallelizable map[string]bool `json:"parallelizable"`
}

// requiredDocumentKeys must be present at the top level of any loadable
// FlowSpec document.
var requiredDocumentKeys = []string{"flow", "run_id", "tasks"}

// ParseDocument decodes and validates a FlowSpec document. Missing
// required top-level keys and invalid component types fail fast; the
// persisted edges and parallelizable fields are discarded and recomputed
// from the loaded tasks.
func ParseDocument(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing flow document")
	}
	for _, key := range requiredDocumentKeys {
		if _, ok := raw[key]; !ok {
			return nil, &errors.ValidationError{
				Field:   key,
				Message: "required top-level key missing from flow document",
			}
		}
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing flow document")
	}
	if doc.Status == "" {
		doc.Status = StatusRunning
	}
	if doc.Tasks == nil {
		doc.Tasks = []*TaskSpec{}
	}
	for i, t := range doc.Tasks {
		if t == nil {
			return nil, &errors.ValidationError{
				Field:   fmt.Sprintf("tasks[%d]", i),
				Message: "task entry is null",
			}
		}
		if !t.ComponentType.Valid() {
			return nil, &errors.ValidationError{
				Field:   fmt.Sprintf("tasks[%d].component_type", i),
				Message: (&InvalidComponentTypeError{Value: string(t.ComponentType)}).Error(),
			}
		}
		t.normalize()
	}
	doc.Recompute()
	return &doc, nil
}

// LoadDocument reads and parses a FlowSpec file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading flow document %s", path)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading flow document %s", path)
	}
	return doc, nil
}

// Recompute refreshes the derived edges and parallelizable fields from the
// task list.
func (d *Document) Recompute() {
	d.Edges = DeriveEdges(d.Tasks)
	d.Parallelizable = ParallelizableTasks(d.Tasks)
}

// Marshal serializes the document with derived fields recomputed. The
// output is indented for human inspection.
func (d *Document) Marshal() ([]byte, error) {
	d.Recompute()
	if d.Tasks == nil {
		d.Tasks = []*TaskSpec{}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "serializing flow document")
	}
	return data, nil
}

// Save writes the document to path, creating parent directories as needed.
func (d *Document) Save(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating directory for %s", path)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing flow document %s", path)
	}
	return nil
}
