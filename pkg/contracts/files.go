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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowtrace/flowtrace/pkg/errors"
)

// ReadFile loads a contract from a JSON or YAML file, chosen by
// extension.
func ReadFile(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading contract %s", path)
	}
	var c Contract
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, errors.Wrapf(err, "parsing contract %s", path)
		}
	} else {
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, errors.Wrapf(err, "parsing contract %s", path)
		}
	}
	if c.Suite == "" {
		return nil, &errors.ValidationError{
			Field:   "suite",
			Message: "contract is missing a suite name",
		}
	}
	if c.Expectations == nil {
		c.Expectations = []Expectation{}
	}
	return &c, nil
}

// WriteFile saves a contract as JSON or YAML, chosen by extension, with
// parent directories created as needed.
func WriteFile(path string, c *Contract) error {
	var data []byte
	var err error
	if isYAMLPath(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "serializing contract")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating directory for %s", path)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing contract %s", path)
	}
	return nil
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
