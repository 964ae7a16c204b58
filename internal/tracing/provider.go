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

// Package tracing wires the OpenTelemetry SDK behind the observability
// interfaces used by flow execution, and exposes Prometheus metrics for
// flow and step lifecycle events.
package tracing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/flowtrace/flowtrace/internal/config"
	"github.com/flowtrace/flowtrace/pkg/lineage"
	"github.com/flowtrace/flowtrace/pkg/observability"
)

// Config selects which trace exporters the provider installs.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ConsoleTraces prints spans to stdout, for notebook-style local use.
	ConsoleTraces bool

	// OTLPEndpoint enables the OTLP gRPC exporter when non-empty.
	OTLPEndpoint string
	OTLPInsecure bool
}

// FromSettings maps process settings onto a provider config.
func FromSettings(s config.Settings) Config {
	return Config{
		ServiceName:    s.ServiceName,
		ServiceVersion: lineage.Version,
		ConsoleTraces:  s.ConsoleTraces,
		OTLPEndpoint:   s.OTLPEndpoint,
		OTLPInsecure:   true,
	}
}

// Provider wraps the OpenTelemetry SDK to implement
// observability.TracerProvider, with a Prometheus-backed meter provider
// for lifecycle metrics.
type Provider struct {
	tp        *sdktrace.TracerProvider
	mp        *sdkmetric.MeterProvider
	collector *Collector
}

// NewProvider builds a provider from cfg. With no exporters configured the
// provider still produces valid spans; they are simply dropped.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"", // empty schema URL avoids merge conflicts with the default resource
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.ConsoleTraces {
		console, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(console))
	}
	if cfg.OTLPEndpoint != "" {
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		otlp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(otlp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	collector, err := NewCollector(mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	return &Provider{tp: tp, mp: mp, collector: collector}, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *Provider) Tracer(name string) observability.Tracer {
	return &otelTracer{tracer: p.tp.Tracer(name)}
}

// Collector returns the lifecycle metrics collector.
func (p *Provider) Collector() *Collector {
	return p.collector
}

// MetricsHandler returns the HTTP handler serving the Prometheus scrape
// endpoint. The OpenTelemetry prometheus exporter registers with the
// default registry, so the stock promhttp handler exposes everything.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes pending spans and metrics and releases resources.
// Calling Shutdown multiple times is safe.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tp.Shutdown(ctx); err != nil {
		return err
	}
	if p.mp != nil {
		return p.mp.Shutdown(ctx)
	}
	return nil
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if err := p.tp.ForceFlush(ctx); err != nil {
		return err
	}
	if p.mp != nil {
		return p.mp.ForceFlush(ctx)
	}
	return nil
}
