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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtrace/flowtrace/pkg/errors"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(filepath.Join(t.TempDir(), "contracts"))
	require.NoError(t, err)
	return r
}

func TestRegistrySaveLoadRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	c := Infer(ordersTable(), "orders", ModeLoose)

	version, err := r.Save("orders", c, "")
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	loaded, err := r.Load("orders", "")
	require.NoError(t, err)
	assert.Equal(t, "orders", loaded.Suite)
	assert.Len(t, loaded.Expectations, len(c.Expectations))
	require.NotNil(t, loaded.Metadata)
	assert.Equal(t, "1", loaded.Metadata.Version)
	assert.Len(t, loaded.Metadata.Hash, 8)
}

func TestRegistryAutoIncrementsVersions(t *testing.T) {
	r := newTestRegistry(t)
	c := Infer(ordersTable(), "orders", ModeLoose)

	for want := 1; want <= 3; want++ {
		version, err := r.Save("orders", c, "")
		require.NoError(t, err)
		assert.Equal(t, version, r.ListVersions("orders")[want-1])
	}
	latest, ok := r.LatestVersion("orders")
	require.True(t, ok)
	assert.Equal(t, "3", latest)
	assert.Equal(t, []string{"1", "2", "3"}, r.ListVersions("orders"))
}

func TestRegistryList(t *testing.T) {
	r := newTestRegistry(t)
	c := Infer(ordersTable(), "x", ModeLoose)
	_, err := r.Save("zeta", c, "")
	require.NoError(t, err)
	_, err = r.Save("alpha", c, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, r.List())
}

func TestRegistryLoadMissing(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Load("ghost", "")
	var notFound *errors.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRegistryCompare(t *testing.T) {
	r := newTestRegistry(t)

	v1 := &Contract{
		Suite: "orders",
		Expectations: []Expectation{
			{Type: ExpectColumnToExist, Kwargs: map[string]any{"column": "id"}},
			{Type: ExpectColumnNotNull, Kwargs: map[string]any{"column": "id"}},
		},
	}
	v2 := &Contract{
		Suite: "orders",
		Expectations: []Expectation{
			{Type: ExpectColumnToExist, Kwargs: map[string]any{"column": "id"}},
			{Type: ExpectRowCountBetween, Kwargs: map[string]any{"min_value": 0, "max_value": 10}},
		},
	}
	_, err := r.Save("orders", v1, "")
	require.NoError(t, err)
	_, err = r.Save("orders", v2, "")
	require.NoError(t, err)

	cmp, err := r.Compare("orders", "1", "2")
	require.NoError(t, err)
	assert.Equal(t, []string{ExpectRowCountBetween}, cmp.AddedTypes)
	assert.Equal(t, []string{ExpectColumnNotNull}, cmp.RemovedTypes)
	assert.Equal(t, []string{ExpectColumnToExist}, cmp.CommonTypes)
	assert.True(t, cmp.BreakingChanges)
	assert.True(t, cmp.HashChanged)
}

func TestRegistryDelete(t *testing.T) {
	r := newTestRegistry(t)
	c := Infer(ordersTable(), "orders", ModeLoose)
	_, err := r.Save("orders", c, "")
	require.NoError(t, err)
	_, err = r.Save("orders", c, "")
	require.NoError(t, err)

	require.NoError(t, r.Delete("orders", "2"))
	latest, ok := r.LatestVersion("orders")
	require.True(t, ok)
	assert.Equal(t, "1", latest)

	require.NoError(t, r.Delete("orders", ""))
	assert.Empty(t, r.List())
	assert.Error(t, r.Delete("orders", ""))
}

func TestContractFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := Infer(ordersTable(), "orders", ModeLoose)

	jsonPath := filepath.Join(dir, "orders.json")
	require.NoError(t, WriteFile(jsonPath, c))
	fromJSON, err := ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, c.Suite, fromJSON.Suite)
	assert.Len(t, fromJSON.Expectations, len(c.Expectations))

	yamlPath := filepath.Join(dir, "orders.yaml")
	require.NoError(t, WriteFile(yamlPath, c))
	fromYAML, err := ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, c.Suite, fromYAML.Suite)
	assert.Len(t, fromYAML.Expectations, len(c.Expectations))
}
