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
	"sync"
)

// MetricsRow is one correlated measurement record for a named operation,
// typically produced by an external profiler or instrumentation harness.
// All measurement fields are optional.
type MetricsRow struct {
	Operation string

	WallTimeSeconds *float64
	CPUHours        *float64
	MemoryDeltaMB   *float64
	ThroughputRPS   *float64
	InputTokens     *int64
	OutputTokens    *int64
	LLMCostUSD      *float64

	Attempts            *int
	Retries             *int
	SucceededAfterRetry *bool
	SucceededOverall    *bool
	MTTRSeconds         *float64
	WastedSeconds       *float64
}

// HasReliability reports whether the row carries any retry telemetry.
func (r MetricsRow) HasReliability() bool {
	return r.Attempts != nil || r.Retries != nil
}

// MetricsSource correlates step names with externally collected
// measurement rows. Lookups happen at step exit and are best effort; a
// missing row degrades to a wall-clock-only performance facet.
type MetricsSource interface {
	// Find returns the most recent row recorded for the operation, if any.
	Find(operation string) (MetricsRow, bool)
}

// StaticMetricsSource is an in-memory MetricsSource fed by the caller. Rows
// are matched by operation name; the most recently added match wins.
type StaticMetricsSource struct {
	mu   sync.Mutex
	rows []MetricsRow
}

// NewStaticMetricsSource returns an empty source.
func NewStaticMetricsSource() *StaticMetricsSource {
	return &StaticMetricsSource{}
}

// Add records a row.
func (s *StaticMetricsSource) Add(row MetricsRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
}

// Find implements MetricsSource.
func (s *StaticMetricsSource) Find(operation string) (MetricsRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].Operation == operation {
			return s.rows[i], true
		}
	}
	return MetricsRow{}, false
}
