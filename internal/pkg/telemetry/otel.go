// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package telemetry wires OpenTelemetry tracing for the setup binary.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"k8s.io/component-base/tracing"
	tracingv1 "k8s.io/component-base/tracing/api/v1"
)

// Provider holds the configured tracer provider.
type Provider struct {
	tp tracing.TracerProvider
}

// New initializes the OpenTelemetry tracing provider. A config without an
// endpoint or with a zero sample rate yields a no-op provider, so tracing is
// off unless explicitly enabled.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := newConfig(opts)

	var otlpCfg *tracingv1.TracingConfiguration
	if cfg.endpoint != "" && cfg.traceSampleRate > 0 {
		otlpCfg = &tracingv1.TracingConfiguration{
			Endpoint:               &cfg.endpoint,
			SamplingRatePerMillion: &cfg.traceSampleRate,
		}
	}

	// Use the trace provider from component-base so it can also be used with
	// Kubernetes components that support tracing. nil otlpCfg means that
	// the tracing provider will be a noop provider.
	tp, err := tracing.NewProvider(ctx, otlpCfg, []otlptracegrpc.Option{}, NewResourceOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}

	// Set the global tracer provider to the one we just created.
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// TraceProvider returns the OpenTelemetry TracerProvider. It should be used
// to create tracers for the application.
func (p *Provider) TraceProvider() tracing.TracerProvider {
	return p.tp
}

// Shutdown flushes any pending spans. Called once before the process exits.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown trace provider: %w", err)
		}
	}
	return nil
}

// NewNoopTracerProvider creates a new no-op tracing provider.
func NewNoopTracerProvider() tracing.TracerProvider {
	return tracing.NewNoopTracerProvider()
}
