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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSelfInferredContractPasses(t *testing.T) {
	table := ordersTable()
	c := Infer(table, "orders", ModeLoose)
	result := Validate(table, c)

	assert.Equal(t, "orders", result.SuiteName)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Empty(t, result.Failures)
	assert.Equal(t, len(c.Expectations), result.Statistics["evaluated_expectations"])
	assert.Equal(t, len(c.Expectations), result.Statistics["successful_expectations"])
}

func TestValidateDetectsDrift(t *testing.T) {
	c := Infer(ordersTable(), "orders", ModeStrict)
	drifted := NewTable(
		[]string{"id", "status", "amount"},
		[][]string{
			{"1", "refunded", "10.50"},
			{"2", "pending", "500.00"},
		},
	)
	result := Validate(drifted, c)
	assert.Equal(t, StatusFailed, result.Status)
	assert.NotEmpty(t, result.Failures)

	joined := ""
	for _, f := range result.Failures {
		joined += f + "\n"
	}
	assert.Contains(t, joined, "status")
	assert.Contains(t, joined, "amount")
	assert.Contains(t, joined, "rows")
}

func TestValidateMissingColumn(t *testing.T) {
	c := &Contract{
		Suite: "orders",
		Expectations: []Expectation{
			{Type: ExpectColumnToExist, Kwargs: map[string]any{"column": "ghost"}},
		},
	}
	result := Validate(ordersTable(), c)
	assert.Equal(t, StatusFailed, result.Status)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "ghost")
}

func TestValidateNullCheck(t *testing.T) {
	table := NewTable([]string{"name"}, [][]string{{"x"}, {""}})
	c := &Contract{
		Suite: "names",
		Expectations: []Expectation{
			{Type: ExpectColumnNotNull, Kwargs: map[string]any{"column": "name"}},
		},
	}
	result := Validate(table, c)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Failures[0], "1 null values")
}

func TestValidateEmptyContractSkipped(t *testing.T) {
	result := Validate(ordersTable(), &Contract{Suite: "empty", Expectations: []Expectation{}})
	assert.Equal(t, StatusSkipped, result.Status)
	assert.Empty(t, result.Failures)
}

func TestValidateUnsupportedExpectationIgnored(t *testing.T) {
	c := &Contract{
		Suite: "orders",
		Expectations: []Expectation{
			{Type: "expect_column_to_levitate", Kwargs: map[string]any{"column": "id"}},
			{Type: ExpectColumnToExist, Kwargs: map[string]any{"column": "id"}},
		},
	}
	result := Validate(ordersTable(), c)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 1, result.Statistics["successful_expectations"])
}

func TestValidateAcceptsJSONDecodedKwargs(t *testing.T) {
	// Numbers arrive as float64 after a JSON round trip.
	c := &Contract{
		Suite: "orders",
		Expectations: []Expectation{
			{Type: ExpectRowCountBetween, Kwargs: map[string]any{
				"min_value": float64(1),
				"max_value": float64(10),
			}},
		},
	}
	result := Validate(ordersTable(), c)
	assert.Equal(t, StatusSuccess, result.Status)
}
