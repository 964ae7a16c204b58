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

package export

import (
	"bytes"
	"encoding/json"

	"github.com/flowtrace/flowtrace/pkg/flow"
)

// taskPayload is a task rendered for embedding in generated Python. The
// JSON fields are pre-escaped for a raw triple-quoted string literal.
type taskPayload struct {
	FuncName      string
	OriginalName  string
	ComponentType flow.ComponentType
	InputsJSON    string
	OutputsJSON   string
	ContractsJSON string
	TagsJSON      string
}

func newTaskPayload(t *flow.TaskSpec) (taskPayload, error) {
	inputs, err := pythonJSON(t.Inputs)
	if err != nil {
		return taskPayload{}, err
	}
	outputs, err := pythonJSON(t.Outputs)
	if err != nil {
		return taskPayload{}, err
	}
	contracts, err := pythonJSON(t.Contracts)
	if err != nil {
		return taskPayload{}, err
	}
	tags, err := pythonJSON(t.Tags)
	if err != nil {
		return taskPayload{}, err
	}
	return taskPayload{
		FuncName:      Identifier(t.Name),
		OriginalName:  t.Name,
		ComponentType: t.ComponentType,
		InputsJSON:    inputs,
		OutputsJSON:   outputs,
		ContractsJSON: contracts,
		TagsJSON:      tags,
	}, nil
}

// pythonJSON encodes a value for embedding inside a raw triple-quoted
// Python string that is passed to json.loads.
func pythonJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	// Single quotes only occur inside JSON strings. Escaping them as
	// \u0027 keeps the payload safe inside a Python r'''...''' literal;
	// json.loads decodes the escape back to the original quote.
	return string(bytes.ReplaceAll(data, []byte("'"), []byte(`\u0027`))), nil
}
