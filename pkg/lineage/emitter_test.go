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

package lineage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEmitter_Emit(t *testing.T) {
	var received runEvent
	var authHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	em := NewHTTPEmitter(Config{Endpoint: srv.URL, APIKey: "secret"})

	ok := em.Emit(context.Background(), Event{
		Type:         EventStart,
		RunID:        "run-1",
		JobName:      "pipeline.load",
		JobNamespace: "notebook",
		Inputs:       []Dataset{{Namespace: "file", Name: "/data/raw.csv"}},
	})

	require.True(t, ok)
	assert.Equal(t, EventStart, received.EventType)
	assert.Equal(t, "run-1", received.Run.RunID)
	assert.Equal(t, "pipeline.load", received.Job.Name)
	assert.Equal(t, "notebook", received.Job.Namespace)
	assert.Equal(t, Producer, received.Producer)
	assert.Equal(t, SchemaURL, received.SchemaURL)
	assert.Equal(t, "Bearer secret", authHeader)
	require.Len(t, received.Inputs, 1)
	assert.Equal(t, "/data/raw.csv", received.Inputs[0].Name)
	// Outputs were nil on the event but must serialize as [].
	assert.NotNil(t, received.Outputs)
}

func TestHTTPEmitter_ReceiverRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	em := NewHTTPEmitter(Config{Endpoint: srv.URL})
	ok := em.Emit(context.Background(), Event{Type: EventComplete, RunID: "r", JobName: "j"})
	assert.False(t, ok)
}

func TestHTTPEmitter_TransportFailureNeverPanics(t *testing.T) {
	em := NewHTTPEmitter(Config{
		Endpoint: "http://127.0.0.1:1", // nothing listens here
		Timeout:  100 * time.Millisecond,
	})

	assert.NotPanics(t, func() {
		ok := em.Emit(context.Background(), Event{Type: EventFail, RunID: "r", JobName: "j"})
		assert.False(t, ok)
	})
}

func TestLogEmitter_AlwaysSucceeds(t *testing.T) {
	em := NewLogEmitter(nil)
	ok := em.Emit(context.Background(), Event{Type: EventStart, RunID: "r", JobName: "j"})
	assert.True(t, ok)
}

func TestNewEmitter_SelectsByEndpoint(t *testing.T) {
	_, isLog := NewEmitter(Config{}).(*LogEmitter)
	assert.True(t, isLog, "empty endpoint should select the log emitter")

	_, isHTTP := NewEmitter(Config{Endpoint: "http://localhost:5000"}).(*HTTPEmitter)
	assert.True(t, isHTTP, "configured endpoint should select the HTTP emitter")
}

func TestPrepareFacets(t *testing.T) {
	prepared := prepareFacets(map[string]any{
		"performance": map[string]any{"wall_time_seconds": 1.5},
		"note":        "plain value",
	})

	perf, ok := prepared["performance"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.5, perf["wall_time_seconds"])
	assert.Equal(t, Producer, perf["_producer"])
	assert.Contains(t, perf["_schemaURL"], "facets/performance")

	note, ok := prepared["note"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "plain value", note["value"])

	assert.Nil(t, prepareFacets(nil))
}
