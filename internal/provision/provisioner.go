// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package provision

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ephemeral-storage-setup/internal/pkg/probe"
	"ephemeral-storage-setup/internal/pkg/sysfs"
	"ephemeral-storage-setup/internal/pkg/telemetry"
)

// Provisioner drives one full convergence run: scan, inspect, plan,
// execute. A run either converges completely or fails at the first
// blocking error; rerunning after an interruption continues from the
// layers already in place.
type Provisioner struct {
	topo        Topology
	scanner     probe.Interface
	inspector   *Inspector
	executor    *Executor
	sysfs       sysfs.Interface
	readAheadKB int
	log         logr.Logger
	tracer      trace.Tracer
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithReadAhead enables read-ahead tuning of the eligible devices before
// provisioning. Failure to tune is logged, never fatal.
func WithReadAhead(s sysfs.Interface, kb int) Option {
	return func(p *Provisioner) {
		p.sysfs = s
		p.readAheadKB = kb
	}
}

// WithTracerProvider sets the tracer.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Provisioner) {
		p.tracer = tp.Tracer("ephemeral-storage-setup/internal/provision")
	}
}

// New returns a Provisioner for the given topology.
func New(topo Topology, scanner probe.Interface, inspector *Inspector, executor *Executor, log logr.Logger, opts ...Option) *Provisioner {
	p := &Provisioner{
		topo:      topo,
		scanner:   scanner,
		inspector: inspector,
		executor:  executor,
		log:       log,
		tracer:    telemetry.NewNoopTracerProvider().Tracer("ephemeral-storage-setup/internal/provision"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run converges the host to the desired topology. It returns nil when the
// host is fully converged, including the all-no-op case.
func (p *Provisioner) Run(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "provision/Run", trace.WithAttributes(
		attribute.String("vg.name", p.topo.VGName),
		attribute.String("lv.name", p.topo.LVName),
	))
	defer span.End()

	devices, err := p.scanner.ScanEligibleDevices(ctx)
	if err != nil {
		return fmt.Errorf("device discovery failed: %w", err)
	}
	p.log.Info("eligible devices", "count", len(devices))

	if p.sysfs != nil && p.readAheadKB > 0 {
		for _, device := range devices {
			if err := p.sysfs.SetReadAheadKB(device.KName, p.readAheadKB); err != nil {
				p.log.Error(err, "failed to tune read-ahead, continuing", "device", device.Path)
			}
		}
	}

	observed, err := p.inspector.Inspect(ctx, p.topo, devices)
	if err != nil {
		return fmt.Errorf("inspection failed: %w", err)
	}

	plan, err := MakePlan(p.topo, devices, observed)
	if err != nil {
		return err
	}

	if plan.IsNoop() {
		p.log.Info("already converged, nothing to do")
		return nil
	}

	for _, step := range plan.Steps {
		p.log.V(1).Info("planned step", "layer", step.Layer, "summary", step.Summary)
	}

	applied, err := p.executor.Execute(ctx, p.topo, plan)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("applied %d of %d step(s): %w", applied, len(plan.Steps), err)
	}

	p.log.Info("converged", "steps", applied, "mountPath", p.topo.MountPath)
	return nil
}
