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
	"strings"
)

// ComponentType classifies what role a step plays in a pipeline. The set is
// closed; values outside it are rejected at step construction and at
// document load.
type ComponentType string

const (
	DataLoader    ComponentType = "DataLoader"
	Transformer   ComponentType = "Transformer"
	Reconciliator ComponentType = "Reconciliator"
	Enricher      ComponentType = "Enricher"
	Exporter      ComponentType = "Exporter"
	QualityCheck  ComponentType = "QualityCheck"
	Splitter      ComponentType = "Splitter"
	Merger        ComponentType = "Merger"
	Orchestrator  ComponentType = "Orchestrator"
	Other         ComponentType = "Other"

	// AutoComponentType asks the configured classifier to resolve the
	// component type at step entry. It is a request sentinel, never a
	// stored value.
	AutoComponentType ComponentType = "auto"
)

// ComponentTypes lists every valid stored component type, in canonical
// order. AutoComponentType is deliberately absent.
var ComponentTypes = []ComponentType{
	DataLoader,
	Transformer,
	Reconciliator,
	Enricher,
	Exporter,
	QualityCheck,
	Splitter,
	Merger,
	Orchestrator,
	Other,
}

// parallelSafe is the fixed subset of component types considered
// inherently safe to run in parallel. This is a heuristic over component
// semantics, not a correctness guarantee.
var parallelSafe = map[ComponentType]bool{
	Transformer:   true,
	Enricher:      true,
	Reconciliator: true,
	QualityCheck:  true,
	Splitter:      true,
}

// Valid reports whether t is a member of the closed stored set.
func (t ComponentType) Valid() bool {
	for _, known := range ComponentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParallelSafe reports whether the type belongs to the inherently
// parallel-safe subset.
func (t ComponentType) ParallelSafe() bool {
	return parallelSafe[t]
}

// ParseComponentType resolves a string to a ComponentType, matching
// case-insensitively. "auto" resolves to the AutoComponentType sentinel.
func ParseComponentType(s string) (ComponentType, error) {
	if strings.EqualFold(s, string(AutoComponentType)) {
		return AutoComponentType, nil
	}
	for _, known := range ComponentTypes {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", &InvalidComponentTypeError{Value: s}
}

// InvalidComponentTypeError reports a component type outside the closed
// set.
type InvalidComponentTypeError struct {
	Value string
}

func (e *InvalidComponentTypeError) Error() string {
	names := make([]string, 0, len(ComponentTypes))
	for _, t := range ComponentTypes {
		names = append(names, string(t))
	}
	return fmt.Sprintf("invalid component type %q (valid: %s)", e.Value, strings.Join(names, ", "))
}

// Status is the lifecycle status of a flow or task.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// TaskSpec is the durable record of one step execution. Field names match
// the FlowSpec wire format exactly. A TaskSpec is mutated only by its
// owning step context and is sealed once the step exits.
type TaskSpec struct {
	Name          string           `json:"name"`
	ComponentType ComponentType    `json:"component_type"`
	Inputs        []DatasetRef     `json:"inputs"`
	Outputs       []DatasetRef     `json:"outputs"`
	Contracts     []map[string]any `json:"contracts"`
	Tags          map[string]any   `json:"tags"`
	StartedAt     *string          `json:"started_at"`
	FinishedAt    *string          `json:"finished_at"`
	Status        *Status          `json:"status"`
	RunID         *string          `json:"run_id"`
	Parent        *string          `json:"parent"`
}

// NewTaskSpec builds a task record with empty but non-nil collections so
// serialization yields [] and {} rather than null.
func NewTaskSpec(name string, componentType ComponentType) (*TaskSpec, error) {
	if !componentType.Valid() {
		return nil, &InvalidComponentTypeError{Value: string(componentType)}
	}
	return &TaskSpec{
		Name:          name,
		ComponentType: componentType,
		Inputs:        []DatasetRef{},
		Outputs:       []DatasetRef{},
		Contracts:     []map[string]any{},
		Tags:          map[string]any{},
	}, nil
}

// normalize replaces nil collections with empty ones. Used when loading
// documents produced by other writers.
func (t *TaskSpec) normalize() {
	if t.Inputs == nil {
		t.Inputs = []DatasetRef{}
	}
	if t.Outputs == nil {
		t.Outputs = []DatasetRef{}
	}
	if t.Contracts == nil {
		t.Contracts = []map[string]any{}
	}
	if t.Tags == nil {
		t.Tags = map[string]any{}
	}
}
