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

package classify

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRules(t *testing.T) {
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--name", "geocode_locations", "--doc", "Add coordinates using an external API"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Component type: Enricher")
	assert.Contains(t, out.String(), "Method:         rule-based")
}

func TestClassifyNoMatch(t *testing.T) {
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--name", "frobnicate"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Component type: Other")
}

func TestClassifyInvalidMethod(t *testing.T) {
	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--name", "x", "--method", "oracle"})

	assert.Error(t, cmd.Execute())
}

func TestCodeExcerptFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snippet.py")
	require.NoError(t, os.WriteFile(path, []byte("df = pd.read_csv(path)"), 0o644))

	assert.Equal(t, "df = pd.read_csv(path)", codeExcerpt(path))
	assert.Equal(t, "inline code", codeExcerpt("inline code"))
	assert.Equal(t, "", codeExcerpt(""))
}
