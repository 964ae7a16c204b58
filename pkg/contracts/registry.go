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
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/flowtrace/flowtrace/pkg/errors"
)

// VersionInfo is the index record for one stored contract version.
type VersionInfo struct {
	CreatedAt         string `json:"created_at"`
	Hash              string `json:"hash"`
	Path              string `json:"path"`
	ExpectationsCount int    `json:"expectations_count"`
}

// SuiteInfo is the index record for one contract suite.
type SuiteInfo struct {
	Versions  map[string]VersionInfo `json:"versions"`
	Latest    string                 `json:"latest"`
	CreatedAt string                 `json:"created_at"`
}

// Comparison summarizes the differences between two stored versions of a
// suite.
type Comparison struct {
	Version1        string   `json:"version1"`
	Version2        string   `json:"version2"`
	CountV1         int      `json:"count_v1"`
	CountV2         int      `json:"count_v2"`
	AddedTypes      []string `json:"added_types"`
	RemovedTypes    []string `json:"removed_types"`
	CommonTypes     []string `json:"common_types"`
	BreakingChanges bool     `json:"breaking_changes"`
	HashChanged     bool     `json:"hash_changed"`
}

// Registry stores versioned contracts on disk. The layout is one JSON file
// per version plus an index.json mapping suites to their versions.
type Registry struct {
	mu      sync.Mutex
	baseDir string
}

// NewRegistry opens (creating if needed) a contract registry rooted at
// baseDir.
func NewRegistry(baseDir string) (*Registry, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating contracts directory %s", baseDir)
	}
	r := &Registry{baseDir: baseDir}
	indexPath := r.indexPath()
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		if err := r.saveIndex(map[string]*SuiteInfo{}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) indexPath() string {
	return filepath.Join(r.baseDir, "index.json")
}

func (r *Registry) contractPath(suite, version string) string {
	return filepath.Join(r.baseDir, fmt.Sprintf("%s_v%s.json", suite, version))
}

func (r *Registry) loadIndex() map[string]*SuiteInfo {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		return map[string]*SuiteInfo{}
	}
	var index map[string]*SuiteInfo
	if err := json.Unmarshal(data, &index); err != nil || index == nil {
		return map[string]*SuiteInfo{}
	}
	return index
}

func (r *Registry) saveIndex(index map[string]*SuiteInfo) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return errors.Wrap(err, "serializing contract index")
	}
	if err := os.WriteFile(r.indexPath(), data, 0o644); err != nil {
		return errors.Wrap(err, "writing contract index")
	}
	return nil
}

// contentHash fingerprints the expectation list. Kwargs maps serialize
// with sorted keys so the hash is stable across saves.
func contentHash(exps []Expectation) string {
	data, err := json.Marshal(exps)
	if err != nil {
		return ""
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])[:8]
}

// List returns every suite name in the registry, sorted.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	index := r.loadIndex()
	names := make([]string, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListVersions returns the stored versions of a suite in numeric order.
func (r *Registry) ListVersions(suite string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return listVersions(r.loadIndex(), suite)
}

func listVersions(index map[string]*SuiteInfo, suite string) []string {
	info, ok := index[suite]
	if !ok {
		return nil
	}
	versions := make([]string, 0, len(info.Versions))
	for v := range info.Versions {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		a, aerr := strconv.Atoi(versions[i])
		b, berr := strconv.Atoi(versions[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return versions[i] < versions[j]
	})
	return versions
}

func latestVersion(index map[string]*SuiteInfo, suite string) string {
	versions := listVersions(index, suite)
	if len(versions) == 0 {
		return ""
	}
	return versions[len(versions)-1]
}

// LatestVersion returns the newest version of a suite, or false when the
// suite has none.
func (r *Registry) LatestVersion(suite string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := latestVersion(r.loadIndex(), suite)
	return v, v != ""
}

// Info returns the index record for a suite.
func (r *Registry) Info(suite string) (*SuiteInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.loadIndex()[suite]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "contract suite", ID: suite}
	}
	return info, nil
}

// Save stores a contract under the given version, auto-incrementing from
// the latest when version is empty. It returns the version written.
func (r *Registry) Save(suite string, c *Contract, version string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.loadIndex()
	info, ok := index[suite]
	if !ok {
		info = &SuiteInfo{
			Versions:  map[string]VersionInfo{},
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		index[suite] = info
	}

	if version == "" {
		version = "1"
		if latest := latestVersion(index, suite); latest != "" {
			if n, err := strconv.Atoi(latest); err == nil {
				version = strconv.Itoa(n + 1)
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	hash := contentHash(c.Expectations)
	stored := *c
	stored.Metadata = &Metadata{
		SuiteName: suite,
		Version:   version,
		CreatedAt: now,
		Hash:      hash,
	}

	path := r.contractPath(suite, version)
	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "serializing contract")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing contract %s", path)
	}

	info.Versions[version] = VersionInfo{
		CreatedAt:         now,
		Hash:              hash,
		Path:              path,
		ExpectationsCount: len(c.Expectations),
	}
	info.Latest = version
	if err := r.saveIndex(index); err != nil {
		return "", err
	}
	return version, nil
}

// Load retrieves a stored contract, defaulting to the latest version when
// version is empty.
func (r *Registry) Load(suite, version string) (*Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(suite, version)
}

func (r *Registry) load(suite, version string) (*Contract, error) {
	if version == "" {
		version = latestVersion(r.loadIndex(), suite)
		if version == "" {
			return nil, &errors.NotFoundError{Resource: "contract suite", ID: suite}
		}
	}
	data, err := os.ReadFile(r.contractPath(suite, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{
				Resource: "contract version",
				ID:       suite + " v" + version,
			}
		}
		return nil, errors.Wrapf(err, "reading contract %s v%s", suite, version)
	}
	var c Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "parsing contract %s v%s", suite, version)
	}
	return &c, nil
}

// Compare diffs two stored versions of a suite. Removed expectation types
// count as breaking changes.
func (r *Registry) Compare(suite, v1, v2 string) (*Comparison, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c1, err := r.load(suite, v1)
	if err != nil {
		return nil, err
	}
	c2, err := r.load(suite, v2)
	if err != nil {
		return nil, err
	}

	types1 := expectationTypes(c1.Expectations)
	types2 := expectationTypes(c2.Expectations)
	added := difference(types2, types1)
	removed := difference(types1, types2)
	common := intersection(types1, types2)

	hash1, hash2 := "", ""
	if c1.Metadata != nil {
		hash1 = c1.Metadata.Hash
	}
	if c2.Metadata != nil {
		hash2 = c2.Metadata.Hash
	}

	return &Comparison{
		Version1:        v1,
		Version2:        v2,
		CountV1:         len(c1.Expectations),
		CountV2:         len(c2.Expectations),
		AddedTypes:      added,
		RemovedTypes:    removed,
		CommonTypes:     common,
		BreakingChanges: len(removed) > 0,
		HashChanged:     hash1 != hash2,
	}, nil
}

// Delete removes a single version, or the whole suite when version is
// empty.
func (r *Registry) Delete(suite, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.loadIndex()
	info, ok := index[suite]
	if !ok {
		return &errors.NotFoundError{Resource: "contract suite", ID: suite}
	}

	if version == "" {
		for v := range info.Versions {
			_ = os.Remove(r.contractPath(suite, v))
		}
		delete(index, suite)
		return r.saveIndex(index)
	}

	if _, ok := info.Versions[version]; !ok {
		return &errors.NotFoundError{
			Resource: "contract version",
			ID:       suite + " v" + version,
		}
	}
	_ = os.Remove(r.contractPath(suite, version))
	delete(info.Versions, version)
	info.Latest = latestVersion(index, suite)
	return r.saveIndex(index)
}

func difference(a, b []string) []string {
	inB := map[string]bool{}
	for _, v := range b {
		inB[v] = true
	}
	out := []string{}
	for _, v := range a {
		if !inB[v] {
			out = append(out, v)
		}
	}
	return out
}

func intersection(a, b []string) []string {
	inB := map[string]bool{}
	for _, v := range b {
		inB[v] = true
	}
	out := []string{}
	for _, v := range a {
		if inB[v] {
			out = append(out, v)
		}
	}
	return out
}
