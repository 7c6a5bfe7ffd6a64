// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package telemetry

import (
	"context"
	"reflect"
	"testing"

	"k8s.io/component-base/tracing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{
			name: "without endpoint creates noop provider",
			opts: []Option{WithTraceSampleRate(1)},
		},
		{
			name: "with zero sample rate creates noop provider",
			opts: []Option{WithEndpoint("jaeger-collector.observability.svc.cluster.local:4317")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(context.Background(), tt.opts...)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !reflect.DeepEqual(p.TraceProvider(), tracing.NewNoopTracerProvider()) {
				t.Fatalf("expected noop tracer provider, got %v", p.TraceProvider())
			}
		})
	}
}
