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

package contracts

// Mode controls how tight the inferred expectation bounds are.
type Mode string

const (
	// ModeLoose widens observed bounds to tolerate routine drift.
	ModeLoose Mode = "loose"
	// ModeStrict pins expectations to exactly what was observed.
	ModeStrict Mode = "strict"
)

// categoricalThreshold is the unique-value ceiling below which a string
// column is assumed categorical and gets a value-set expectation.
const categoricalThreshold = 20

// rowCountBuffer pads the row-count expectation in loose mode.
const rowCountBuffer = 1000

// Infer derives a contract from the observed shape of a table. Loose mode
// buffers numeric ranges by 20 percent, string lengths by a few characters,
// and row counts by a fixed margin; strict mode pins everything to the
// observed values.
func Infer(t *Table, suite string, mode Mode) *Contract {
	if mode != ModeStrict {
		mode = ModeLoose
	}
	c := &Contract{
		Type:         ContractType,
		Suite:        suite,
		Status:       StatusCreated,
		Mode:         mode,
		RowCount:     t.RowCount(),
		ColumnCount:  len(t.columns),
		Expectations: []Expectation{},
	}

	for _, column := range t.columns {
		c.Expectations = append(c.Expectations, Expectation{
			Type:   ExpectColumnToExist,
			Kwargs: map[string]any{"column": column},
		})

		nonNull := t.nonNull(column)
		nullCount := t.RowCount() - len(nonNull)
		if len(nonNull) > 0 && (mode == ModeStrict || nullCount == 0) {
			c.Expectations = append(c.Expectations, Expectation{
				Type:   ExpectColumnNotNull,
				Kwargs: map[string]any{"column": column},
			})
		}
		if len(nonNull) == 0 {
			continue
		}

		if t.isNumeric(column) {
			min, max := t.numericRange(column)
			if mode == ModeLoose {
				min *= 0.8
				max *= 1.2
			}
			c.Expectations = append(c.Expectations, Expectation{
				Type: ExpectColumnBetween,
				Kwargs: map[string]any{
					"column":    column,
					"min_value": min,
					"max_value": max,
				},
			})
			continue
		}

		minLen, maxLen := lengthRange(nonNull)
		if mode == ModeLoose {
			minLen -= 5
			if minLen < 0 {
				minLen = 0
			}
			maxLen += 50
		}
		c.Expectations = append(c.Expectations, Expectation{
			Type: ExpectColumnLengthsBetween,
			Kwargs: map[string]any{
				"column":    column,
				"min_value": minLen,
				"max_value": maxLen,
			},
		})

		if unique := uniqueValues(nonNull); len(unique) <= categoricalThreshold {
			values := make([]any, 0, len(unique))
			for _, v := range unique {
				values = append(values, v)
			}
			c.Expectations = append(c.Expectations, Expectation{
				Type: ExpectColumnInSet,
				Kwargs: map[string]any{
					"column":    column,
					"value_set": values,
				},
			})
		}
	}

	minRows, maxRows := t.RowCount(), t.RowCount()
	if mode == ModeLoose {
		minRows -= rowCountBuffer
		if minRows < 0 {
			minRows = 0
		}
		maxRows += rowCountBuffer
	}
	c.Expectations = append(c.Expectations, Expectation{
		Type: ExpectRowCountBetween,
		Kwargs: map[string]any{
			"min_value": minRows,
			"max_value": maxRows,
		},
	})
	return c
}

func lengthRange(values []string) (int, int) {
	min, max := len(values[0]), len(values[0])
	for _, v := range values[1:] {
		if len(v) < min {
			min = len(v)
		}
		if len(v) > max {
			max = len(v)
		}
	}
	return min, max
}

// uniqueValues preserves first-seen order so inferred value sets are
// deterministic for a given input.
func uniqueValues(values []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
