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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Emitter publishes lineage events. Implementations must never return an
// error or panic into the caller; the boolean reports whether the event was
// delivered (or deliberately logged in lieu of delivery).
type Emitter interface {
	Emit(ctx context.Context, event Event) bool
}

// Config selects and configures an emitter.
type Config struct {
	// Endpoint is the event receiver URL. Empty selects the log-only emitter.
	Endpoint string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Timeout bounds each emission request. Default: 5s.
	Timeout time.Duration

	// Logger receives delivery diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// NewEmitter creates the emitter described by cfg: an HTTP emitter when an
// endpoint is configured, otherwise a log-only emitter.
func NewEmitter(cfg Config) Emitter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Endpoint == "" {
		logger.Debug("lineage endpoint not configured, events will be logged only")
		return &LogEmitter{logger: logger}
	}
	return NewHTTPEmitter(cfg)
}

// LogEmitter writes events to the structured log instead of a transport.
// It is the default collaborator when no receiver is configured.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a log-only emitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit logs the event and reports success.
func (e *LogEmitter) Emit(ctx context.Context, event Event) bool {
	payload, err := json.Marshal(toWire(event))
	if err != nil {
		e.logger.Warn("could not serialize lineage event",
			slog.String("event", string(event.Type)),
			slog.String("job", event.JobName),
			slog.Any("error", err))
		return false
	}

	e.logger.Debug("lineage event",
		slog.String("event", string(event.Type)),
		slog.String("job", event.JobName),
		slog.String("payload", string(payload)))
	return true
}

// HTTPEmitter posts events to an OpenLineage-compatible HTTP receiver.
type HTTPEmitter struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPEmitter creates an emitter posting to cfg.Endpoint.
func NewHTTPEmitter(cfg Config) *HTTPEmitter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPEmitter{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Emit posts the event. Transport failures are logged and reported as
// false; they are never propagated.
func (e *HTTPEmitter) Emit(ctx context.Context, event Event) bool {
	payload, err := json.Marshal(toWire(event))
	if err != nil {
		e.logger.Warn("could not serialize lineage event", slog.Any("error", err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		e.logger.Warn("could not build lineage request", slog.Any("error", err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("lineage event delivery failed",
			slog.String("event", string(event.Type)),
			slog.String("job", event.JobName),
			slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		e.logger.Warn("lineage receiver rejected event",
			slog.String("event", string(event.Type)),
			slog.String("job", event.JobName),
			slog.String("status", fmt.Sprintf("%d", resp.StatusCode)))
		return false
	}

	e.logger.Debug("lineage event delivered",
		slog.String("event", string(event.Type)),
		slog.String("job", event.JobName))
	return true
}
