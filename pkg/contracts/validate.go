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

import (
	"fmt"
	"strconv"

	"github.com/flowtrace/flowtrace/pkg/flow"
)

// Validate evaluates every expectation of the contract against the table
// and returns a validation facet. Unsupported expectation types are
// skipped without counting as failures; an individual check that cannot be
// evaluated records a failure rather than aborting the run.
func Validate(t *Table, c *Contract) flow.ValidationFacet {
	if len(c.Expectations) == 0 {
		return flow.ValidationFacet{
			SuiteName:  c.Suite,
			Status:     StatusSkipped,
			Statistics: map[string]any{"reason": "no expectations in contract"},
			Failures:   []string{},
		}
	}

	failures := []string{}
	successful := 0
	for _, exp := range c.Expectations {
		ok, failure := check(t, exp)
		if ok {
			successful++
		} else if failure != "" {
			failures = append(failures, failure)
		}
	}

	status := StatusSuccess
	if len(failures) > 0 {
		status = StatusFailed
	}
	return flow.ValidationFacet{
		SuiteName: c.Suite,
		Status:    status,
		Statistics: map[string]any{
			"evaluated_expectations":    len(c.Expectations),
			"successful_expectations":   successful,
			"unsuccessful_expectations": len(failures),
			"success_percent":           float64(successful) / float64(len(c.Expectations)) * 100,
		},
		Failures: failures,
	}
}

// check evaluates one expectation. The second return is empty when the
// expectation is unsupported and should be skipped silently.
func check(t *Table, exp Expectation) (bool, string) {
	column, _ := exp.Kwargs["column"].(string)

	switch exp.Type {
	case ExpectColumnToExist:
		if !t.HasColumn(column) {
			return false, fmt.Sprintf("column %q does not exist", column)
		}
		return true, ""

	case ExpectColumnNotNull:
		if !t.HasColumn(column) {
			return false, fmt.Sprintf("column %q does not exist for null check", column)
		}
		nulls := t.RowCount() - len(t.nonNull(column))
		if nulls > 0 {
			return false, fmt.Sprintf("column %q has %d null values", column, nulls)
		}
		return true, ""

	case ExpectColumnBetween:
		if !t.HasColumn(column) {
			return false, fmt.Sprintf("column %q does not exist for range check", column)
		}
		min, max := asFloat(exp.Kwargs["min_value"]), asFloat(exp.Kwargs["max_value"])
		outOfRange := 0
		for _, v := range t.nonNull(column) {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < min || f > max {
				outOfRange++
			}
		}
		if outOfRange > 0 {
			return false, fmt.Sprintf("column %q has %d values outside range [%v, %v]", column, outOfRange, min, max)
		}
		return true, ""

	case ExpectColumnLengthsBetween:
		if !t.HasColumn(column) {
			return false, fmt.Sprintf("column %q does not exist for length check", column)
		}
		min, max := int(asFloat(exp.Kwargs["min_value"])), int(asFloat(exp.Kwargs["max_value"]))
		outOfRange := 0
		for _, v := range t.nonNull(column) {
			if len(v) < min || len(v) > max {
				outOfRange++
			}
		}
		if outOfRange > 0 {
			return false, fmt.Sprintf("column %q has %d values with length outside range [%d, %d]", column, outOfRange, min, max)
		}
		return true, ""

	case ExpectColumnInSet:
		if !t.HasColumn(column) {
			return false, fmt.Sprintf("column %q does not exist for value set check", column)
		}
		allowed := map[string]bool{}
		if set, ok := exp.Kwargs["value_set"].([]any); ok {
			for _, v := range set {
				allowed[fmt.Sprint(v)] = true
			}
		}
		unexpected := 0
		for _, v := range t.nonNull(column) {
			if !allowed[v] {
				unexpected++
			}
		}
		if unexpected > 0 {
			return false, fmt.Sprintf("column %q has %d unexpected values", column, unexpected)
		}
		return true, ""

	case ExpectRowCountBetween:
		min, max := int(asFloat(exp.Kwargs["min_value"])), int(asFloat(exp.Kwargs["max_value"]))
		rows := t.RowCount()
		if rows < min || rows > max {
			return false, fmt.Sprintf("table has %d rows, expected between %d and %d", rows, min, max)
		}
		return true, ""

	default:
		return false, ""
	}
}

// asFloat coerces JSON-decoded numbers, which may arrive as float64, int,
// or a numeric string.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
