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

// Package contracts infers, validates, and versions data contracts over
// tabular datasets. A contract is a suite of expectations; the document
// shape is stable so contracts attached to flow steps survive as opaque
// JSON.
package contracts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Expectation is a single named check with its parameters.
type Expectation struct {
	Type   string         `json:"expectation_type" yaml:"expectation_type"`
	Kwargs map[string]any `json:"kwargs" yaml:"kwargs"`
}

// Expectation type names. The vocabulary follows the Great Expectations
// convention so contracts stay portable across tooling.
const (
	ExpectColumnToExist        = "expect_column_to_exist"
	ExpectColumnNotNull        = "expect_column_values_to_not_be_null"
	ExpectColumnBetween        = "expect_column_values_to_be_between"
	ExpectColumnLengthsBetween = "expect_column_value_lengths_to_be_between"
	ExpectColumnInSet          = "expect_column_values_to_be_in_set"
	ExpectRowCountBetween      = "expect_table_row_count_to_be_between"
)

// Contract statuses.
const (
	StatusCreated = "CREATED"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
	StatusError   = "ERROR"
)

// ContractType identifies documents produced by this package.
const ContractType = "data_contract"

// Metadata is stamped onto a contract when it enters the registry.
type Metadata struct {
	SuiteName string `json:"suite_name" yaml:"suite_name"`
	Version   string `json:"version" yaml:"version"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
	Hash      string `json:"hash" yaml:"hash"`
}

// Contract is a suite of expectations over one tabular dataset.
type Contract struct {
	Type         string        `json:"type" yaml:"type"`
	Suite        string        `json:"suite" yaml:"suite"`
	Status       string        `json:"status" yaml:"status"`
	Mode         Mode          `json:"mode,omitempty" yaml:"mode,omitempty"`
	Reason       string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	RowCount     int           `json:"row_count,omitempty" yaml:"row_count,omitempty"`
	ColumnCount  int           `json:"column_count,omitempty" yaml:"column_count,omitempty"`
	Expectations []Expectation `json:"expectations" yaml:"expectations"`
	Metadata     *Metadata     `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ToDoc renders the contract as the plain-map document shape attached to
// flow steps.
func (c *Contract) ToDoc() map[string]any {
	data, err := json.Marshal(c)
	if err != nil {
		return map[string]any{"type": ContractType, "suite": c.Suite}
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]any{"type": ContractType, "suite": c.Suite}
	}
	return doc
}

// ValidateDocument checks the structural shape of an opaque contract
// document and returns human-readable problems, empty when valid.
func ValidateDocument(doc map[string]any) []string {
	var problems []string
	for _, field := range []string{"type", "suite"} {
		if _, ok := doc[field]; !ok {
			problems = append(problems, "missing required field: "+field)
		}
	}
	raw, ok := doc["expectations"]
	if !ok || raw == nil {
		return problems
	}
	list, ok := raw.([]any)
	if !ok {
		return append(problems, "expectations must be a list")
	}
	for i, entry := range list {
		exp, ok := entry.(map[string]any)
		if !ok {
			problems = append(problems, fmt.Sprintf("expectation %d must be an object", i))
			continue
		}
		if _, ok := exp["expectation_type"]; !ok {
			problems = append(problems, fmt.Sprintf("expectation %d missing expectation_type", i))
		}
		if kwargs, ok := exp["kwargs"]; ok {
			if _, ok := kwargs.(map[string]any); !ok {
				problems = append(problems, fmt.Sprintf("expectation %d kwargs must be an object", i))
			}
		} else {
			problems = append(problems, fmt.Sprintf("expectation %d missing kwargs", i))
		}
	}
	return problems
}

// Summary renders a human-readable description of the contract, grouping
// expectations by type.
func Summary(c *Contract) string {
	if len(c.Expectations) == 0 {
		return fmt.Sprintf("Contract %q: no expectations defined", c.Suite)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Contract: %s\n", c.Suite)
	fmt.Fprintf(&b, "Total expectations: %d\n", len(c.Expectations))

	byType := map[string][]Expectation{}
	var order []string
	for _, exp := range c.Expectations {
		if _, seen := byType[exp.Type]; !seen {
			order = append(order, exp.Type)
		}
		byType[exp.Type] = append(byType[exp.Type], exp)
	}

	for _, expType := range order {
		group := byType[expType]
		fmt.Fprintf(&b, "\n%s: %d\n", expType, len(group))
		shown := group
		if len(shown) > 3 {
			shown = shown[:3]
		}
		for _, exp := range shown {
			fmt.Fprintf(&b, "  - %s\n", describeExpectation(exp))
		}
		if len(group) > 3 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(group)-3)
		}
	}
	return b.String()
}

func describeExpectation(exp Expectation) string {
	col, _ := exp.Kwargs["column"].(string)
	switch exp.Type {
	case ExpectColumnToExist:
		return fmt.Sprintf("column %q must exist", col)
	case ExpectColumnNotNull:
		return fmt.Sprintf("column %q must not be null", col)
	case ExpectColumnBetween:
		return fmt.Sprintf("column %q values must be between %v and %v", col, exp.Kwargs["min_value"], exp.Kwargs["max_value"])
	case ExpectColumnLengthsBetween:
		return fmt.Sprintf("column %q value lengths must be between %v and %v", col, exp.Kwargs["min_value"], exp.Kwargs["max_value"])
	case ExpectColumnInSet:
		if set, ok := exp.Kwargs["value_set"].([]any); ok && len(set) > 5 {
			return fmt.Sprintf("column %q values must be in a set of %d values", col, len(set))
		}
		return fmt.Sprintf("column %q values must be in %v", col, exp.Kwargs["value_set"])
	case ExpectRowCountBetween:
		return fmt.Sprintf("table must have between %v and %v rows", exp.Kwargs["min_value"], exp.Kwargs["max_value"])
	default:
		return fmt.Sprintf("%s with %d parameters", exp.Type, len(exp.Kwargs))
	}
}

// expectationTypes returns the sorted set of expectation types present in
// the list.
func expectationTypes(exps []Expectation) []string {
	set := map[string]bool{}
	for _, exp := range exps {
		set[exp.Type] = true
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
