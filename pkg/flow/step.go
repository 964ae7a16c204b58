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
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flowtrace/flowtrace/internal/log"
	"github.com/flowtrace/flowtrace/pkg/lineage"
	"github.com/flowtrace/flowtrace/pkg/observability"
)

// Step is a step execution context. It records datasets and contracts
// while the user's code runs and seals the owning registry's task record
// at End. A Step is created by StartStep and finished exactly once; a
// second End is ignored.
type Step struct {
	name          string
	componentType ComponentType
	declaredAuto  bool
	rationale     string
	tags          map[string]any
	runID         string
	jobNamespace  string

	flow   *Flow
	task   *TaskSpec
	logger *slog.Logger
	span   observability.SpanHandle

	mu        sync.Mutex
	inputs    []DatasetRef
	outputs   []DatasetRef
	contracts []map[string]any

	startTime time.Time
	ended     atomic.Bool
}

// StepOption configures a Step at StartStep.
type StepOption func(*Step)

// WithTags attaches user tags to the step's task record and span.
func WithTags(tags map[string]any) StepOption {
	return func(s *Step) {
		for k, v := range tags {
			s.tags[k] = v
		}
	}
}

// WithStepNamespace overrides the lineage job namespace for this step.
func WithStepNamespace(namespace string) StepOption {
	return func(s *Step) {
		if namespace != "" {
			s.jobNamespace = namespace
		}
	}
}

// StartStep begins a step execution under the ambient flow on ctx. The
// component type must belong to the closed set or be "auto", in which case
// the flow's classifier resolves it before the task record is created.
// Steps work without an ambient flow, with reduced bookkeeping: lineage
// and tracing still fire, but no task record is kept.
func StartStep(ctx context.Context, name string, componentType ComponentType, opts ...StepOption) (context.Context, *Step, error) {
	f := FromContext(ctx)
	s := &Step{
		name:          name,
		componentType: componentType,
		tags:          map[string]any{},
		flow:          f,
		logger:        slog.Default(),
		jobNamespace:  "notebook",
		rationale:     "manually specified",
	}
	if f != nil {
		s.logger = f.logger
		s.jobNamespace = f.jobNamespace
	}
	for _, opt := range opts {
		opt(s)
	}
	if componentType == AutoComponentType {
		s.declaredAuto = true
		s.componentType, s.rationale = s.classify(name)
	}
	if !s.componentType.Valid() {
		return ctx, nil, &InvalidComponentTypeError{Value: string(componentType)}
	}
	s.runID = uuid.NewString()
	s.startTime = timeNow()

	if f != nil {
		task, err := NewTaskSpec(name, s.componentType)
		if err != nil {
			return ctx, nil, err
		}
		started := nowZulu()
		status := StatusRunning
		task.StartedAt = &started
		task.Status = &status
		task.RunID = &s.runID
		for k, v := range s.tags {
			task.Tags[k] = v
		}
		f.registry.beginTask(task)
		s.task = task
		f.collector.StepStarted(f.Name(), name)
	}

	ctx, s.span = s.tracer().Start(ctx, s.spanName(), s.spanAttributes())
	s.emit(lineage.EventStart, nil, nil, nil)
	s.logger.Info("step started",
		log.String(log.StepKey, name),
		log.String(log.ComponentTypeKey, string(s.componentType)),
		log.String(log.RunIDKey, s.runID),
	)
	return withStep(ctx, s), s, nil
}

// Name returns the step name.
func (s *Step) Name() string { return s.name }

// ComponentType returns the resolved component type.
func (s *Step) ComponentType() ComponentType { return s.componentType }

// RunID returns the step execution identifier.
func (s *Step) RunID() string { return s.runID }

// MarkInput records a dataset consumed by the step. Calls after End are
// logged and ignored; the sealed record never changes.
func (s *Step) MarkInput(ds DatasetRef) {
	if s.frozen("mark input") {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, ds)
}

// MarkOutput records a dataset produced by the step. Calls after End are
// logged and ignored.
func (s *Step) MarkOutput(ds DatasetRef) {
	if s.frozen("mark output") {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, ds)
}

// AddContract attaches a contract document to the step. Calls after End
// are logged and ignored.
func (s *Step) AddContract(doc map[string]any) {
	if s.frozen("add contract") {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts = append(s.contracts, doc)
}

func (s *Step) frozen(action string) bool {
	if !s.ended.Load() {
		return false
	}
	s.logger.Warn("step already finished, ignoring "+action,
		log.String(log.StepKey, s.name),
	)
	return true
}

// End finishes the step. A nil err yields SUCCESS, otherwise FAILED. All
// bookkeeping runs before control returns so a caller propagating err sees
// a fully sealed record; bookkeeping failures are logged, never raised, so
// they cannot mask the user's error.
func (s *Step) End(err error) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	duration := timeNow().Sub(s.startTime)
	s.finalize(err, duration)
	s.closeSpan(err, duration)
}

func (s *Step) finalize(err error, duration time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("step finalization failed",
				log.String(log.StepKey, s.name),
				log.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	success := err == nil
	status := StatusSuccess
	eventType := lineage.EventComplete
	if !success {
		status = StatusFailed
		eventType = lineage.EventFail
	}

	s.mu.Lock()
	inputs := append([]DatasetRef{}, s.inputs...)
	outputs := append([]DatasetRef{}, s.outputs...)
	contracts := append([]map[string]any{}, s.contracts...)
	s.mu.Unlock()

	facets := s.buildFacets(success, duration)
	s.emit(eventType, inputs, outputs, facets.ToMap())

	if s.flow != nil && s.task != nil {
		s.flow.registry.finishTask(s.task, status, inputs, outputs, contracts)
		s.flow.collector.StepFinished(s.flow.Name(), s.name, status, duration)
		if s.flow.warnOnMissingIO && (len(inputs) == 0 || len(outputs) == 0) {
			s.logger.Warn("step finished without inputs or outputs, lineage edges may be incomplete",
				log.String(log.StepKey, s.name),
				log.Int("inputs", len(inputs)),
				log.Int("outputs", len(outputs)),
			)
		}
	}

	s.logger.Info("step finished",
		log.String(log.StepKey, s.name),
		log.String("status", string(status)),
		log.Duration("duration", duration.Milliseconds()),
	)
}

func (s *Step) closeSpan(err error, duration time.Duration) {
	if s.span == nil {
		return
	}
	attrs := map[string]any{
		"duration_seconds": duration.Seconds(),
		"success":          err == nil,
	}
	if err != nil {
		attrs["error.type"] = fmt.Sprintf("%T", err)
		attrs["error.message"] = err.Error()
		s.span.RecordError(err)
		s.span.SetStatus(observability.StatusCodeError, err.Error())
	} else {
		s.span.SetStatus(observability.StatusCodeOK, "")
	}
	s.span.SetAttributes(attrs)
	s.span.End()
}

// buildFacets assembles the run-facet bundle reported at step exit. The
// classification facet is always present. Performance comes from the
// metrics source when a row correlates by step name, with wall time filled
// in if the row lacks it; otherwise a minimal wall-clock facet is built.
// Reliability appears only when the row carries retry data.
func (s *Step) buildFacets(success bool, duration time.Duration) Bundle {
	method := "manual"
	if s.declaredAuto {
		method = "auto"
	}
	bundle := Bundle{
		FacetClassification: ClassificationFacet{
			ComponentType: string(s.componentType),
			Method:        method,
			Rationale:     s.rationale,
		},
	}

	wall := duration.Seconds()
	if src := s.metricsSource(); src != nil {
		if row, ok := src.Find(s.name); ok {
			perf := PerformanceFromRow(row)
			if perf.WallTimeSeconds == nil {
				perf.WallTimeSeconds = &wall
			}
			bundle[FacetPerformance] = perf
			if rel, ok := ReliabilityFromRow(row); ok {
				if rel.Success == nil {
					rel.Success = &success
				}
				bundle[FacetReliability] = rel
			}
		}
	}
	if _, ok := bundle[FacetPerformance]; !ok {
		bundle[FacetPerformance] = PerformanceFacet{WallTimeSeconds: &wall}
	}

	s.mu.Lock()
	contracts := append([]map[string]any{}, s.contracts...)
	s.mu.Unlock()
	if len(contracts) > 0 {
		bundle[FacetContracts] = ContractsFacet{Contracts: contracts}
	}
	return bundle
}

func (s *Step) emit(eventType lineage.EventType, inputs, outputs []DatasetRef, runFacets map[string]any) {
	emitter := s.emitter()
	if emitter == nil {
		return
	}
	event := lineage.Event{
		Type:         eventType,
		RunID:        s.runID,
		JobName:      s.jobName(),
		JobNamespace: s.jobNamespace,
		Inputs:       toLineageDatasets(inputs),
		Outputs:      toLineageDatasets(outputs),
		RunFacets:    runFacets,
	}
	emitter.Emit(context.Background(), event)
}

func (s *Step) jobName() string {
	if s.flow != nil {
		return s.flow.Name() + "." + s.name
	}
	return "flow." + s.name
}

func (s *Step) spanName() string {
	return "step." + s.name
}

func (s *Step) spanAttributes() map[string]any {
	attrs := map[string]any{
		"step.name":           s.name,
		"step.component_type": string(s.componentType),
		"step.run_id":         s.runID,
	}
	if s.flow != nil {
		attrs["flow.name"] = s.flow.Name()
	}
	for k, v := range s.tags {
		attrs["tag."+k] = v
	}
	return attrs
}

func (s *Step) tracer() observability.Tracer {
	if s.flow != nil {
		return s.flow.tracer
	}
	return observability.NoopTracer()
}

func (s *Step) emitter() lineage.Emitter {
	if s.flow != nil {
		return s.flow.emitter
	}
	return nil
}

func (s *Step) metricsSource() MetricsSource {
	if s.flow != nil {
		return s.flow.metricsSource
	}
	return nil
}

func (s *Step) classify(name string) (ComponentType, string) {
	if s.flow != nil && s.flow.classifier != nil {
		return s.flow.classifier.Classify(name)
	}
	return Other, "no classifier configured"
}

func toLineageDatasets(refs []DatasetRef) []lineage.Dataset {
	out := make([]lineage.Dataset, 0, len(refs))
	for _, r := range refs {
		out = append(out, lineage.Dataset{
			Namespace: r.Namespace,
			Name:      r.Name,
			Facets:    r.Facets,
		})
	}
	return out
}

// RunStep executes fn inside a step scope. The step is finished even when
// fn panics; the panic propagates after bookkeeping completes.
func RunStep(ctx context.Context, name string, componentType ComponentType, fn func(context.Context, *Step) error, opts ...StepOption) error {
	ctx, s, err := StartStep(ctx, name, componentType, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			s.End(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()
	err = fn(ctx, s)
	s.End(err)
	return err
}
