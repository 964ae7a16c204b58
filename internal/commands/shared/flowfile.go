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

package shared

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/flowtrace/flowtrace/pkg/errors"
)

// flowFilePattern matches FlowSpec files written by auto-export.
const flowFilePattern = "*_flow_*.json"

// FindFlowFiles returns FlowSpec files in a directory, newest first.
// An empty directory argument means the current working directory.
func FindFlowFiles(dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	matches, err := filepath.Glob(filepath.Join(dir, flowFilePattern))
	if err != nil {
		return nil, err
	}
	type entry struct {
		path    string
		modTime int64
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: m, modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime > entries[j].modTime })
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.path)
	}
	return paths, nil
}

// ResolveFlowFile returns the explicit path when given, otherwise the
// newest FlowSpec file in the current directory.
func ResolveFlowFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	files, err := FindFlowFiles("")
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", &errors.NotFoundError{Resource: "flow file", ID: flowFilePattern}
	}
	return files[0], nil
}
