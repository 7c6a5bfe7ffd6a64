// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package provision

import (
	"fmt"

	"ephemeral-storage-setup/internal/pkg/block"
)

// Layer identifies the topology layer a step targets.
type Layer string

const (
	LayerDevice Layer = "device"
	LayerVG     Layer = "vg"
	LayerLV     Layer = "lv"
	LayerFS     Layer = "fs"
	LayerMount  Layer = "mount"
)

// Action is the mutating operation a step performs. Every action has
// ensure semantics: the executor checks the post-state and no-ops when it
// already holds.
type Action string

const (
	ActionCreatePV   Action = "pvcreate"
	ActionCreateVG   Action = "vgcreate"
	ActionExtendVG   Action = "vgextend"
	ActionCreateLV   Action = "lvcreate"
	ActionActivateLV Action = "lvchange-activate"
	ActionFormat     Action = "mkfs"
	ActionMount      Action = "mount"
)

// Step is one idempotent plan entry.
type Step struct {
	Layer   Layer
	Action  Action
	Device  string   // for device-scoped actions
	Devices []string // for group-scoped actions
	Summary string
}

// Plan is an ordered sequence of steps, always emitted in layer order
// device -> vg -> lv -> fs -> mount so an interrupted prior run resumes
// where it left off.
type Plan struct {
	Steps []Step
}

// IsNoop reports whether the plan contains no actionable steps.
func (p *Plan) IsNoop() bool {
	return len(p.Steps) == 0
}

// MakePlan reconciles the candidate devices and the observed state into an
// ordered plan. It is a pure function: all error classification happens
// here, all mutation happens in the executor.
func MakePlan(topo Topology, candidates []block.Device, observed *ObservedState) (*Plan, error) {
	usable := len(candidates) - len(observed.ClaimedElsewhere)

	if topo.ExpectedDevices > 0 && usable < topo.ExpectedDevices {
		return nil, fmt.Errorf("%w: expected %d device(s), found %d", ErrNoEligibleDevices, topo.ExpectedDevices, usable)
	}

	switch observed.VG {
	case StatusForeign:
		return nil, fmt.Errorf("%w: %s", ErrForeignState, observed.VGDetail)
	case StatusDegraded:
		return nil, fmt.Errorf("%w: %s", ErrDegradedMembership, observed.VGDetail)
	case StatusAbsent:
		if usable == 0 {
			return nil, fmt.Errorf("%w: nothing to provision", ErrNoEligibleDevices)
		}
	}

	if observed.LV == StatusForeign {
		return nil, fmt.Errorf("%w: volume group %s contains logical volumes other than %s", ErrForeignState, topo.VGName, topo.LVName)
	}
	if observed.FS == StatusForeign {
		return nil, fmt.Errorf("%w: logical volume %s carries a %s signature, expected %s", ErrForeignState, topo.FullLVName(), observed.FSSignature, topo.FSType)
	}
	if observed.Mount == StatusForeign {
		return nil, fmt.Errorf("%w: mount path %s is claimed by %s", ErrForeignState, topo.MountPath, observed.MountedDevice)
	}

	plan := &Plan{}

	for _, device := range observed.Unlabeled {
		plan.Steps = append(plan.Steps, Step{
			Layer:   LayerDevice,
			Action:  ActionCreatePV,
			Device:  device,
			Summary: fmt.Sprintf("label %s as a physical volume", device),
		})
	}

	switch observed.VG {
	case StatusAbsent:
		plan.Steps = append(plan.Steps, Step{
			Layer:   LayerVG,
			Action:  ActionCreateVG,
			Devices: observed.NewMembers,
			Summary: fmt.Sprintf("create volume group %s from %d device(s)", topo.VGName, len(observed.NewMembers)),
		})
	case StatusConsistent:
		if len(observed.NewMembers) > 0 {
			plan.Steps = append(plan.Steps, Step{
				Layer:   LayerVG,
				Action:  ActionExtendVG,
				Devices: observed.NewMembers,
				Summary: fmt.Sprintf("extend volume group %s with %d device(s)", topo.VGName, len(observed.NewMembers)),
			})
		}
	}

	switch {
	case observed.LV == StatusAbsent:
		plan.Steps = append(plan.Steps, Step{
			Layer:   LayerLV,
			Action:  ActionCreateLV,
			Summary: fmt.Sprintf("create logical volume %s spanning the full group capacity", topo.FullLVName()),
		})
	case observed.LV == StatusConsistent && !observed.LVActive:
		plan.Steps = append(plan.Steps, Step{
			Layer:   LayerLV,
			Action:  ActionActivateLV,
			Summary: fmt.Sprintf("activate logical volume %s", topo.FullLVName()),
		})
	}

	if observed.FS == StatusAbsent {
		plan.Steps = append(plan.Steps, Step{
			Layer:   LayerFS,
			Action:  ActionFormat,
			Summary: fmt.Sprintf("format %s as %s", topo.LVPath(), topo.FSType),
		})
	}

	if observed.Mount == StatusAbsent {
		plan.Steps = append(plan.Steps, Step{
			Layer:   LayerMount,
			Action:  ActionMount,
			Summary: fmt.Sprintf("mount %s at %s", topo.LVPath(), topo.MountPath),
		})
	}

	return plan, nil
}
