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

package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/flowtrace/flowtrace/pkg/flow"
)

// Collector records flow and step lifecycle metrics through OpenTelemetry
// instruments, exposed via the Prometheus scrape endpoint. It implements
// flow.Collector.
type Collector struct {
	flowsTotal   metric.Int64Counter
	stepsTotal   metric.Int64Counter
	flowDuration metric.Float64Histogram
	stepDuration metric.Float64Histogram

	activeMu    sync.RWMutex
	activeFlows map[string]bool
	activeSteps int64
}

// NewCollector registers the flowtrace instruments on the given meter
// provider.
func NewCollector(meterProvider metric.MeterProvider) (*Collector, error) {
	meter := meterProvider.Meter("flowtrace")
	c := &Collector{activeFlows: make(map[string]bool)}

	var err error
	c.flowsTotal, err = meter.Int64Counter(
		"flowtrace_flows_total",
		metric.WithDescription("Total number of completed flow executions"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, err
	}
	c.stepsTotal, err = meter.Int64Counter(
		"flowtrace_steps_total",
		metric.WithDescription("Total number of completed step executions"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}
	c.flowDuration, err = meter.Float64Histogram(
		"flowtrace_flow_duration_seconds",
		metric.WithDescription("Flow execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	c.stepDuration, err = meter.Float64Histogram(
		"flowtrace_step_duration_seconds",
		metric.WithDescription("Step execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"flowtrace_active_flows",
		metric.WithDescription("Number of currently running flows"),
		metric.WithUnit("{flow}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			c.activeMu.RLock()
			count := len(c.activeFlows)
			c.activeMu.RUnlock()
			observer.Observe(int64(count))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	_, err = meter.Int64ObservableGauge(
		"flowtrace_active_steps",
		metric.WithDescription("Number of currently running steps"),
		metric.WithUnit("{step}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			c.activeMu.RLock()
			count := c.activeSteps
			c.activeMu.RUnlock()
			observer.Observe(count)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// FlowStarted implements flow.Collector.
func (c *Collector) FlowStarted(flowName, runID string) {
	c.activeMu.Lock()
	c.activeFlows[runID] = true
	c.activeMu.Unlock()
}

// FlowFinished implements flow.Collector.
func (c *Collector) FlowFinished(flowName, runID string, status flow.Status, duration time.Duration) {
	c.activeMu.Lock()
	delete(c.activeFlows, runID)
	c.activeMu.Unlock()

	attrs := metric.WithAttributes(
		attribute.String("flow", flowName),
		attribute.String("status", string(status)),
	)
	ctx := context.Background()
	c.flowsTotal.Add(ctx, 1, attrs)
	c.flowDuration.Record(ctx, duration.Seconds(), attrs)
}

// StepStarted implements flow.Collector.
func (c *Collector) StepStarted(flowName, stepName string) {
	c.activeMu.Lock()
	c.activeSteps++
	c.activeMu.Unlock()
}

// StepFinished implements flow.Collector.
func (c *Collector) StepFinished(flowName, stepName string, status flow.Status, duration time.Duration) {
	c.activeMu.Lock()
	if c.activeSteps > 0 {
		c.activeSteps--
	}
	c.activeMu.Unlock()

	attrs := metric.WithAttributes(
		attribute.String("flow", flowName),
		attribute.String("step", stepName),
		attribute.String("status", string(status)),
	)
	ctx := context.Background()
	c.stepsTotal.Add(ctx, 1, attrs)
	c.stepDuration.Record(ctx, duration.Seconds(), attrs)
}
