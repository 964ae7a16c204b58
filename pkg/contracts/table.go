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
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/flowtrace/flowtrace/pkg/errors"
	"github.com/flowtrace/flowtrace/pkg/flow"
)

// Table is an in-memory tabular dataset with string cells. An empty cell
// is treated as null for expectation purposes.
type Table struct {
	columns []string
	rows    [][]string
}

// NewTable builds a table from a header and rows. Short rows are padded
// with empty cells so every row matches the header width.
func NewTable(columns []string, rows [][]string) *Table {
	padded := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < len(columns) {
			grown := make([]string, len(columns))
			copy(grown, row)
			row = grown
		}
		padded = append(padded, row[:len(columns)])
	}
	return &Table{columns: columns, rows: padded}
}

// ReadCSV parses CSV content whose first record is the header row.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	if len(records) == 0 {
		return nil, &errors.ValidationError{
			Field:   "csv",
			Message: "input has no header row",
		}
	}
	return NewTable(records[0], records[1:]), nil
}

// LoadCSV reads a CSV file into a table.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return t, nil
}

// Columns returns the header names in order.
func (t *Table) Columns() []string {
	return append([]string{}, t.columns...)
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	return t.columnIndex(name) >= 0
}

func (t *Table) columnIndex(name string) int {
	for i, col := range t.columns {
		if col == name {
			return i
		}
	}
	return -1
}

// values returns every cell of the named column, empties included.
func (t *Table) values(name string) []string {
	idx := t.columnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, row[idx])
	}
	return out
}

// nonNull returns the non-empty cells of the named column.
func (t *Table) nonNull(name string) []string {
	var out []string
	for _, v := range t.values(name) {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// isNumeric reports whether every non-empty cell of the column parses as a
// number, with at least one such cell present.
func (t *Table) isNumeric(name string) bool {
	nonNull := t.nonNull(name)
	if len(nonNull) == 0 {
		return false
	}
	for _, v := range nonNull {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return true
}

// numericRange returns the min and max over non-empty cells, assuming the
// column is numeric.
func (t *Table) numericRange(name string) (float64, float64) {
	var min, max float64
	first := true
	for _, v := range t.nonNull(name) {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		if first {
			min, max = f, f
			first = false
			continue
		}
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	return min, max
}

// TabularView adapts the table to the schema-capture interface used for
// dataset facets.
func (t *Table) TabularView() flow.Tabular {
	return tableView{t}
}

type tableView struct {
	t *Table
}

func (v tableView) Columns() []flow.Column {
	out := make([]flow.Column, 0, len(v.t.columns))
	for _, name := range v.t.columns {
		colType := "string"
		if v.t.isNumeric(name) {
			colType = "number"
		}
		out = append(out, flow.Column{Name: name, Type: colType})
	}
	return out
}

func (v tableView) RowCount() int {
	return v.t.RowCount()
}
