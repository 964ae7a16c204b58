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

// Package lineage emits run lifecycle events to an OpenLineage-compatible
// receiver. Emission is strictly best-effort: transport failures degrade to
// a logged no-op and are never surfaced to instrumented code.
package lineage

import (
	"time"
)

// EventType is the lifecycle state an event reports.
type EventType string

const (
	// EventStart marks the beginning of a run.
	EventStart EventType = "START"
	// EventRunning marks a heartbeat for an in-progress run.
	EventRunning EventType = "RUNNING"
	// EventComplete marks successful completion.
	EventComplete EventType = "COMPLETE"
	// EventAbort marks a run cancelled before completion.
	EventAbort EventType = "ABORT"
	// EventFail marks a failed run.
	EventFail EventType = "FAIL"
)

// Producer identifies this library in emitted events.
const Producer = "flowtrace/" + Version

// Version is the library version stamped into events.
const Version = "0.1.0"

// SchemaURL is the run-event schema emitted events conform to.
const SchemaURL = "https://openlineage.io/spec/1-0-5/OpenLineage.json#/definitions/RunEvent"

// Dataset identifies a unit of data consumed or produced by a run.
type Dataset struct {
	Namespace string         `json:"namespace"`
	Name      string         `json:"name"`
	Facets    map[string]any `json:"facets,omitempty"`
}

// Event is one lineage emission: a run transitioned state, with its
// currently-known inputs, outputs and facets.
type Event struct {
	Type         EventType
	RunID        string
	JobName      string
	JobNamespace string
	Inputs       []Dataset
	Outputs      []Dataset
	RunFacets    map[string]any
	JobFacets    map[string]any
}

// runEvent is the wire representation of an Event.
type runEvent struct {
	EventType EventType `json:"eventType"`
	EventTime string    `json:"eventTime"`
	Run       runRef    `json:"run"`
	Job       jobRef    `json:"job"`
	Inputs    []Dataset `json:"inputs"`
	Outputs   []Dataset `json:"outputs"`
	Producer  string    `json:"producer"`
	SchemaURL string    `json:"schemaURL"`
}

type runRef struct {
	RunID  string         `json:"runId"`
	Facets map[string]any `json:"facets,omitempty"`
}

type jobRef struct {
	Namespace string         `json:"namespace"`
	Name      string         `json:"name"`
	Facets    map[string]any `json:"facets,omitempty"`
}

// toWire converts an Event to its wire form, stamping producer metadata
// onto each facet payload.
func toWire(e Event) runEvent {
	inputs := e.Inputs
	if inputs == nil {
		inputs = []Dataset{}
	}
	outputs := e.Outputs
	if outputs == nil {
		outputs = []Dataset{}
	}

	return runEvent{
		EventType: e.Type,
		EventTime: time.Now().UTC().Format(time.RFC3339Nano),
		Run:       runRef{RunID: e.RunID, Facets: prepareFacets(e.RunFacets)},
		Job:       jobRef{Namespace: e.JobNamespace, Name: e.JobName, Facets: prepareFacets(e.JobFacets)},
		Inputs:    inputs,
		Outputs:   outputs,
		Producer:  Producer,
		SchemaURL: SchemaURL,
	}
}

// prepareFacets stamps producer and schema metadata onto facet payloads.
// Map payloads are annotated in a copy; anything else is wrapped under a
// "value" key so every facet stays JSON-serializable.
func prepareFacets(facets map[string]any) map[string]any {
	if len(facets) == 0 {
		return nil
	}

	prepared := make(map[string]any, len(facets))
	for key, value := range facets {
		switch v := value.(type) {
		case map[string]any:
			annotated := make(map[string]any, len(v)+2)
			for k, val := range v {
				annotated[k] = val
			}
			annotated["_producer"] = Producer
			annotated["_schemaURL"] = "https://github.com/flowtrace/flowtrace/facets/" + key
			prepared[key] = annotated
		default:
			prepared[key] = map[string]any{
				"value":     value,
				"_producer": Producer,
			}
		}
	}
	return prepared
}
