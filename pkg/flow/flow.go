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

package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flowtrace/flowtrace/internal/log"
	"github.com/flowtrace/flowtrace/pkg/lineage"
	"github.com/flowtrace/flowtrace/pkg/observability"
)

// Collector receives lifecycle notifications for metrics aggregation. All
// methods are fire-and-forget; implementations must not block or panic.
type Collector interface {
	FlowStarted(flowName, runID string)
	FlowFinished(flowName, runID string, status Status, duration time.Duration)
	StepStarted(flowName, stepName string)
	StepFinished(flowName, stepName string, status Status, duration time.Duration)
}

type noopCollector struct{}

func (noopCollector) FlowStarted(string, string) {}

func (noopCollector) FlowFinished(string, string, Status, time.Duration) {}

func (noopCollector) StepStarted(string, string) {}

func (noopCollector) StepFinished(string, string, Status, time.Duration) {}

// NoopCollector returns a collector that discards everything.
func NoopCollector() Collector { return noopCollector{} }

// Classifier resolves step names whose component type was requested as
// "auto". It returns the resolved type and a short rationale.
type Classifier interface {
	Classify(stepName string) (ComponentType, string)
}

type defaultClassifier struct{}

func (defaultClassifier) Classify(string) (ComponentType, string) {
	return Other, "no classifier configured"
}

// Flow is a flow execution context. It owns a Registry, the collaborator
// set shared by its steps, and the export policy applied at End.
type Flow struct {
	registry      *Registry
	logger        *slog.Logger
	tracer        observability.Tracer
	emitter       lineage.Emitter
	metricsSource MetricsSource
	collector     Collector
	classifier    Classifier

	jobNamespace    string
	warnOnMissingIO bool
	autoExport      bool
	exportPath      string

	runID     string
	startTime time.Time
	ended     atomic.Bool
}

// Option configures a Flow at Start.
type Option func(*Flow)

// WithRunID pins the flow run identifier instead of generating one.
func WithRunID(runID string) Option {
	return func(f *Flow) { f.runID = runID }
}

// WithAutoExport controls whether End persists the FlowSpec document.
// Enabled by default.
func WithAutoExport(enabled bool) Option {
	return func(f *Flow) { f.autoExport = enabled }
}

// WithExportPath overrides the default "{flow}_flow_{runID}.json" export
// path.
func WithExportPath(path string) Option {
	return func(f *Flow) { f.exportPath = path }
}

// WithLogger sets the structured logger used by the flow and its steps.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTracer sets the tracer that step spans are started from.
func WithTracer(tracer observability.Tracer) Option {
	return func(f *Flow) {
		if tracer != nil {
			f.tracer = tracer
		}
	}
}

// WithEmitter sets the lineage event emitter.
func WithEmitter(emitter lineage.Emitter) Option {
	return func(f *Flow) {
		if emitter != nil {
			f.emitter = emitter
		}
	}
}

// WithMetricsSource sets the external metrics correlation source consulted
// at step exit.
func WithMetricsSource(source MetricsSource) Option {
	return func(f *Flow) { f.metricsSource = source }
}

// WithCollector sets the metrics collector notified on lifecycle changes.
func WithCollector(collector Collector) Option {
	return func(f *Flow) {
		if collector != nil {
			f.collector = collector
		}
	}
}

// WithClassifier sets the resolver for steps declared with the "auto"
// component type.
func WithClassifier(classifier Classifier) Option {
	return func(f *Flow) {
		if classifier != nil {
			f.classifier = classifier
		}
	}
}

// WithJobNamespace sets the lineage job namespace for the flow's steps.
func WithJobNamespace(namespace string) Option {
	return func(f *Flow) {
		if namespace != "" {
			f.jobNamespace = namespace
		}
	}
}

// WithMissingIOWarnings controls the non-fatal warning logged when a step
// finishes without inputs or outputs. Enabled by default.
func WithMissingIOWarnings(enabled bool) Option {
	return func(f *Flow) { f.warnOnMissingIO = enabled }
}

// Start begins a flow execution and installs it as the ambient flow on the
// returned context. Steps started from that context attach themselves to
// this flow. End must be called exactly once; extra calls are ignored.
func Start(ctx context.Context, name string, opts ...Option) (context.Context, *Flow) {
	f := &Flow{
		logger:          slog.Default(),
		tracer:          observability.NoopTracer(),
		emitter:         lineage.NewEmitter(lineage.Config{}),
		collector:       NoopCollector(),
		classifier:      defaultClassifier{},
		jobNamespace:    "notebook",
		warnOnMissingIO: true,
		autoExport:      true,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.runID == "" {
		f.runID = uuid.NewString()
	}
	f.startTime = timeNow()
	f.registry = NewRegistry(name, f.runID)
	f.collector.FlowStarted(name, f.runID)
	f.logger.Info("flow started",
		log.String(log.FlowKey, name),
		log.String(log.RunIDKey, f.runID),
	)
	return withFlow(ctx, f), f
}

// Name returns the flow name.
func (f *Flow) Name() string { return f.registry.Name() }

// RunID returns the flow execution identifier.
func (f *Flow) RunID() string { return f.runID }

// Registry exposes the flow's registry for inspection and export.
func (f *Flow) Registry() *Registry { return f.registry }

// End finishes the flow. A nil err yields SUCCESS, otherwise FAILED. When
// auto-export is enabled the FlowSpec document is written out best effort:
// a persistence failure is logged, never returned, so it cannot mask an
// in-flight user error. End is idempotent.
func (f *Flow) End(err error) {
	if !f.ended.CompareAndSwap(false, true) {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	f.registry.finish(status)
	duration := timeNow().Sub(f.startTime)
	f.collector.FlowFinished(f.Name(), f.runID, status, duration)
	f.logger.Info("flow finished",
		log.String(log.FlowKey, f.Name()),
		log.String(log.RunIDKey, f.runID),
		log.String("status", string(status)),
		log.Duration("duration", duration.Milliseconds()),
	)
	if !f.autoExport {
		return
	}
	path := f.exportPath
	if path == "" {
		path = fmt.Sprintf("%s_flow_%s.json", f.Name(), f.runID)
	}
	if saveErr := f.registry.Document().Save(path); saveErr != nil {
		f.logger.Error("flow export failed",
			log.String(log.FlowKey, f.Name()),
			log.String("path", path),
			log.Error(saveErr),
		)
		return
	}
	f.logger.Info("flow exported", log.String("path", path))
}

// Run executes fn inside a flow scope. The flow is always finished, even
// when fn panics, and the panic is re-raised after bookkeeping.
func Run(ctx context.Context, name string, fn func(context.Context) error, opts ...Option) error {
	ctx, f := Start(ctx, name, opts...)
	defer func() {
		if r := recover(); r != nil {
			f.End(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()
	err := fn(ctx)
	f.End(err)
	return err
}
