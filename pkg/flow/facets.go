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
)

// FacetKind tags the closed set of run-facet variants attached to lineage
// events at step completion.
type FacetKind string

const (
	FacetPerformance    FacetKind = "performance"
	FacetReliability    FacetKind = "reliability"
	FacetClassification FacetKind = "classification"
	FacetContracts      FacetKind = "contracts"
	FacetValidation     FacetKind = "validation"
)

// Facet is a marker for the typed facet variants in this package.
type Facet interface {
	Kind() FacetKind
}

// PerformanceFacet carries resource and throughput measurements for one
// step execution. Unset fields serialize as null.
type PerformanceFacet struct {
	WallTimeSeconds *float64 `json:"wall_time_seconds"`
	CPUHours        *float64 `json:"cpu_hours"`
	MemoryDeltaMB   *float64 `json:"memory_delta_mb"`
	ThroughputRPS   *float64 `json:"throughput_rps"`
	InputTokens     *int64   `json:"input_tokens"`
	OutputTokens    *int64   `json:"output_tokens"`
	LLMCostUSD      *float64 `json:"llm_cost_usd"`
}

func (PerformanceFacet) Kind() FacetKind { return FacetPerformance }

// ReliabilityFacet carries retry telemetry for one step execution. It is
// attached only when the metrics source reports retry data.
type ReliabilityFacet struct {
	Attempts            int      `json:"attempts"`
	Retries             int      `json:"retries"`
	SucceededAfterRetry bool     `json:"succeeded_after_retry"`
	Success             *bool    `json:"success"`
	MTTRSeconds         *float64 `json:"mttr_seconds"`
	WastedSeconds       *float64 `json:"wasted_seconds"`
}

func (ReliabilityFacet) Kind() FacetKind { return FacetReliability }

// ClassificationFacet records how the step's component type was decided.
type ClassificationFacet struct {
	ComponentType string `json:"component_type"`
	Method        string `json:"method"`
	Rationale     string `json:"rationale"`
}

func (ClassificationFacet) Kind() FacetKind { return FacetClassification }

// ContractsFacet carries the contract documents attached to a step.
type ContractsFacet struct {
	Contracts []map[string]any `json:"contracts"`
}

func (ContractsFacet) Kind() FacetKind { return FacetContracts }

// ValidationFacet summarizes a contract-suite validation outcome.
type ValidationFacet struct {
	SuiteName  string         `json:"suite_name"`
	Status     string         `json:"status"`
	Statistics map[string]any `json:"statistics"`
	Failures   []string       `json:"failures"`
}

func (ValidationFacet) Kind() FacetKind { return FacetValidation }

// Bundle is the facet set assembled at step exit, keyed by kind.
type Bundle map[FacetKind]Facet

// ToMap renders the bundle into the plain-map shape expected by lineage
// run-facet payloads. Facets that fail to serialize are skipped.
func (b Bundle) ToMap() map[string]any {
	out := make(map[string]any, len(b))
	for kind, facet := range b {
		data, err := json.Marshal(facet)
		if err != nil {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		out[string(kind)] = m
	}
	return out
}

// PerformanceFromRow maps a metrics-correlation row onto a performance
// facet. A zero row yields a facet with all fields unset.
func PerformanceFromRow(row MetricsRow) PerformanceFacet {
	return PerformanceFacet{
		WallTimeSeconds: row.WallTimeSeconds,
		CPUHours:        row.CPUHours,
		MemoryDeltaMB:   row.MemoryDeltaMB,
		ThroughputRPS:   row.ThroughputRPS,
		InputTokens:     row.InputTokens,
		OutputTokens:    row.OutputTokens,
		LLMCostUSD:      row.LLMCostUSD,
	}
}

// ReliabilityFromRow maps the retry fields of a metrics-correlation row
// onto a reliability facet. The second return is false when the row carries
// no retry data at all.
func ReliabilityFromRow(row MetricsRow) (ReliabilityFacet, bool) {
	if !row.HasReliability() {
		return ReliabilityFacet{}, false
	}
	facet := ReliabilityFacet{
		Attempts:      1,
		Success:       row.SucceededOverall,
		MTTRSeconds:   row.MTTRSeconds,
		WastedSeconds: row.WastedSeconds,
	}
	if row.Attempts != nil {
		facet.Attempts = *row.Attempts
	}
	if row.Retries != nil {
		facet.Retries = *row.Retries
	}
	if row.SucceededAfterRetry != nil {
		facet.SucceededAfterRetry = *row.SucceededAfterRetry
	}
	return facet, true
}
