// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/gotidy/ptr"

	"ephemeral-storage-setup/internal/pkg/fsutil"
	"ephemeral-storage-setup/internal/pkg/lvm"
	"ephemeral-storage-setup/internal/pkg/mount"
)

// Executor applies a plan step by step. It is the only component that
// mutates state. After each step it rechecks the step's postcondition, so
// "the command succeeded" becomes "the effect is visible". A failed step
// aborts the rest of the plan; completed layers are left in place for the
// next run to continue from. There is no rollback.
type Executor struct {
	lvm     lvm.Manager
	fs      fsutil.Interface
	mounter mount.Interface
	log     logr.Logger
}

// NewExecutor returns an Executor using the given capabilities.
func NewExecutor(lvmMgr lvm.Manager, fs fsutil.Interface, mounter mount.Interface, log logr.Logger) *Executor {
	return &Executor{
		lvm:     lvmMgr,
		fs:      fs,
		mounter: mounter,
		log:     log,
	}
}

// Execute applies the plan in order and returns the number of steps
// applied before completion or the first failure.
func (e *Executor) Execute(ctx context.Context, topo Topology, plan *Plan) (int, error) {
	for applied, step := range plan.Steps {
		e.log.Info("applying step", "layer", step.Layer, "action", step.Action, "summary", step.Summary)
		if err := e.apply(ctx, topo, step); err != nil {
			return applied, fmt.Errorf("step %q failed: %w", step.Summary, err)
		}
	}
	return len(plan.Steps), nil
}

func (e *Executor) apply(ctx context.Context, topo Topology, step Step) error {
	switch step.Action {
	case ActionCreatePV:
		return e.createPhysicalVolume(ctx, step.Device)
	case ActionCreateVG:
		return e.createVolumeGroup(ctx, topo, step.Devices)
	case ActionExtendVG:
		return e.extendVolumeGroup(ctx, topo, step.Devices)
	case ActionCreateLV:
		return e.createLogicalVolume(ctx, topo)
	case ActionActivateLV:
		return e.activateLogicalVolume(ctx, topo)
	case ActionFormat:
		return e.ensureFormatted(ctx, topo)
	case ActionMount:
		return e.ensureMounted(ctx, topo)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func (e *Executor) createPhysicalVolume(ctx context.Context, device string) error {
	err := e.lvm.CreatePhysicalVolume(ctx, lvm.CreatePVOptions{Name: device})
	if err != nil && !errors.Is(err, lvm.ErrAlreadyExists) {
		return err
	}

	if _, err := e.lvm.GetPhysicalVolume(ctx, device); err != nil {
		return fmt.Errorf("%w: physical volume %s not visible after pvcreate: %v", ErrPostcondition, device, err)
	}
	return nil
}

func (e *Executor) createVolumeGroup(ctx context.Context, topo Topology, devices []string) error {
	err := e.lvm.CreateVolumeGroup(ctx, lvm.CreateVGOptions{
		Name:    topo.VGName,
		PVNames: devices,
	})
	if err != nil && !errors.Is(err, lvm.ErrAlreadyExists) {
		return err
	}

	vg, err := e.lvm.GetVolumeGroup(ctx, topo.VGName)
	if err != nil {
		return fmt.Errorf("%w: volume group %s not visible after vgcreate: %v", ErrPostcondition, topo.VGName, err)
	}
	if int(vg.PVCount) < len(devices) {
		return fmt.Errorf("%w: volume group %s has %d member(s), expected %d", ErrPostcondition, topo.VGName, vg.PVCount, len(devices))
	}
	return nil
}

func (e *Executor) extendVolumeGroup(ctx context.Context, topo Topology, devices []string) error {
	err := e.lvm.ExtendVolumeGroup(ctx, lvm.ExtendVGOptions{
		Name:    topo.VGName,
		PVNames: devices,
	})
	if err != nil && !errors.Is(err, lvm.ErrPVAlreadyInVolumeGroup) {
		return err
	}

	for _, device := range devices {
		pv, err := e.lvm.GetPhysicalVolume(ctx, device)
		if err != nil {
			return fmt.Errorf("%w: physical volume %s not visible after vgextend: %v", ErrPostcondition, device, err)
		}
		if pv.VGName != topo.VGName {
			return fmt.Errorf("%w: physical volume %s joined %q, expected %q", ErrPostcondition, device, pv.VGName, topo.VGName)
		}
	}
	return nil
}

// createLogicalVolume carves one volume out of the full group capacity.
// With more than one member the volume is striped across all of them, the
// way a raid0 array would be laid out.
func (e *Executor) createLogicalVolume(ctx context.Context, topo Topology) error {
	vg, err := e.lvm.GetVolumeGroup(ctx, topo.VGName)
	if err != nil {
		return fmt.Errorf("failed to read volume group %s before lvcreate: %w", topo.VGName, err)
	}

	opts := lvm.CreateLVOptions{
		Name:    topo.LVName,
		VGName:  topo.VGName,
		Extents: "100%FREE",
	}
	if vg.PVCount > 1 {
		opts.Stripes = ptr.Of(int(vg.PVCount))
	}

	if err := e.lvm.CreateLogicalVolume(ctx, opts); err != nil && !errors.Is(err, lvm.ErrAlreadyExists) {
		return err
	}

	lv, err := e.lvm.GetLogicalVolume(ctx, topo.VGName, topo.LVName)
	if err != nil {
		return fmt.Errorf("%w: logical volume %s not visible after lvcreate: %v", ErrPostcondition, topo.FullLVName(), err)
	}
	if lv.Active != "active" {
		return e.activateLogicalVolume(ctx, topo)
	}
	return nil
}

func (e *Executor) activateLogicalVolume(ctx context.Context, topo Topology) error {
	err := e.lvm.UpdateLogicalVolume(ctx, lvm.UpdateLVOptions{
		Name:     topo.FullLVName(),
		Activate: lvm.Yes,
	})
	if err != nil {
		return err
	}

	lv, err := e.lvm.GetLogicalVolume(ctx, topo.VGName, topo.LVName)
	if err != nil {
		return fmt.Errorf("%w: logical volume %s not visible after lvchange: %v", ErrPostcondition, topo.FullLVName(), err)
	}
	if lv.Active != "active" {
		return fmt.Errorf("%w: logical volume %s is not active", ErrPostcondition, topo.FullLVName())
	}
	return nil
}

// ensureFormatted writes the target filesystem onto the logical volume
// unless a signature is already present. An unexpected signature is a
// foreign-state error, never overwritten.
func (e *Executor) ensureFormatted(ctx context.Context, topo Topology) error {
	sig, err := e.fs.Signature(ctx, topo.LVPath())
	if err != nil {
		return err
	}
	switch sig {
	case topo.FSType:
		return nil
	case "":
	default:
		return fmt.Errorf("%w: logical volume %s carries a %s signature, expected %s", ErrForeignState, topo.FullLVName(), sig, topo.FSType)
	}

	if err := e.fs.Format(ctx, topo.LVPath(), topo.FSType); err != nil {
		return err
	}

	sig, err = e.fs.Signature(ctx, topo.LVPath())
	if err != nil {
		return fmt.Errorf("%w: failed to re-probe %s after mkfs: %v", ErrPostcondition, topo.LVPath(), err)
	}
	if sig != topo.FSType {
		return fmt.Errorf("%w: %s has signature %q after mkfs, expected %q", ErrPostcondition, topo.LVPath(), sig, topo.FSType)
	}
	return nil
}

func (e *Executor) ensureMounted(ctx context.Context, topo Topology) error {
	_, err := e.mounter.EnsureMounted(ctx,
		[]string{topo.LVPath(), topo.MapperPath()},
		topo.MountPath, topo.FSType, topo.MountOptions)
	if err != nil {
		return err
	}

	if err := e.mounter.SetOwnership(topo.MountPath, topo.MountUID, topo.MountGID, topo.MountMode); err != nil {
		return err
	}
	return nil
}
