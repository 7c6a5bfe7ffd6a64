// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	mountutils "k8s.io/mount-utils"

	"ephemeral-storage-setup/internal/pkg/block"
	"ephemeral-storage-setup/internal/pkg/fsutil"
	"ephemeral-storage-setup/internal/pkg/lvm"
)

// Inspector reconstructs the observed topology state from volume metadata,
// filesystem signatures and the mount table. Every check is side-effect
// free.
type Inspector struct {
	lvm     lvm.Manager
	fs      fsutil.Interface
	mounter mountutils.Interface
	log     logr.Logger
}

// NewInspector returns an Inspector using the given capabilities.
func NewInspector(lvmMgr lvm.Manager, fs fsutil.Interface, mounter mountutils.Interface, log logr.Logger) *Inspector {
	return &Inspector{
		lvm:     lvmMgr,
		fs:      fs,
		mounter: mounter,
		log:     log,
	}
}

// Inspect snapshots the state of each topology layer for the given
// candidate devices. Candidates claimed by an unrelated volume group are
// recorded and dropped from membership, never modified.
func (i *Inspector) Inspect(ctx context.Context, topo Topology, candidates []block.Device) (*ObservedState, error) {
	state := &ObservedState{
		VG:    StatusAbsent,
		LV:    StatusAbsent,
		FS:    StatusAbsent,
		Mount: StatusAbsent,
	}

	pvs, err := i.lvm.ListPhysicalVolumes(ctx, nil)
	if err != nil && !errors.Is(err, lvm.ErrNotFound) {
		return nil, fmt.Errorf("failed to list physical volumes: %w", err)
	}
	pvByName := make(map[string]lvm.PhysicalVolume, len(pvs))
	for _, pv := range pvs {
		pvByName[pv.Name] = pv
	}

	candidatePaths := make(map[string]bool, len(candidates))
	var members []string
	for _, device := range candidates {
		pv, labeled := pvByName[device.Path]
		if !labeled {
			// lsblk may know the signature before lvm does, but a PV
			// without a pvs record still needs labeling.
			state.Unlabeled = append(state.Unlabeled, device.Path)
			state.NewMembers = append(state.NewMembers, device.Path)
			candidatePaths[device.Path] = true
			continue
		}
		switch pv.VGName {
		case "":
			state.NewMembers = append(state.NewMembers, device.Path)
			candidatePaths[device.Path] = true
		case topo.VGName:
			members = append(members, device.Path)
			candidatePaths[device.Path] = true
		default:
			i.log.Info("device belongs to another volume group, skipping",
				"device", device.Path, "vg", pv.VGName)
			state.ClaimedElsewhere = append(state.ClaimedElsewhere, device.Path)
		}
	}

	vg, err := i.lvm.GetVolumeGroup(ctx, topo.VGName)
	switch {
	case errors.Is(err, lvm.ErrNotFound):
		state.VG = StatusAbsent
	case err != nil:
		return nil, fmt.Errorf("failed to inspect volume group %s: %w", topo.VGName, err)
	default:
		i.inspectMembership(state, topo, vg, pvs, candidatePaths, members)
	}

	if state.VG == StatusConsistent {
		if err := i.inspectLogicalVolume(ctx, state, topo, vg); err != nil {
			return nil, err
		}
	}

	if state.LV == StatusConsistent && state.LVActive {
		if err := i.inspectFilesystem(ctx, state, topo); err != nil {
			return nil, err
		}
	}

	if err := i.inspectMount(state, topo); err != nil {
		return nil, err
	}

	i.log.V(1).Info("observed state",
		"vg", state.VG, "lv", state.LV, "fs", state.FS, "mount", state.Mount,
		"unlabeled", state.Unlabeled, "newMembers", state.NewMembers)
	return state, nil
}

// inspectMembership compares the group's recorded physical volumes against
// the candidate set. Recorded members that are missing from the host, or
// that are not eligible candidates, make the group degraded or foreign
// respectively.
func (i *Inspector) inspectMembership(state *ObservedState, topo Topology, vg *lvm.VolumeGroup, pvs []lvm.PhysicalVolume, candidatePaths map[string]bool, members []string) {
	if vg.MissingPVCount > 0 || bool(vg.Partial) {
		state.VG = StatusDegraded
		state.VGDetail = fmt.Sprintf("volume group %s is missing %d physical volume(s)", vg.Name, vg.MissingPVCount)
		return
	}

	for _, pv := range pvs {
		if pv.VGName != topo.VGName {
			continue
		}
		if bool(pv.Missing) {
			state.VG = StatusDegraded
			state.VGDetail = fmt.Sprintf("physical volume %s recorded in %s is missing", pv.Name, vg.Name)
			return
		}
		if !candidatePaths[pv.Name] {
			state.VG = StatusForeign
			state.VGDetail = fmt.Sprintf("volume group %s contains unexpected member %s", vg.Name, pv.Name)
			return
		}
	}

	if int(vg.PVCount) > len(members) {
		// pvs and vgs disagree; treat as degraded rather than guessing.
		state.VG = StatusDegraded
		state.VGDetail = fmt.Sprintf("volume group %s records %d physical volume(s), %d present", vg.Name, vg.PVCount, len(members))
		return
	}

	state.VG = StatusConsistent
}

func (i *Inspector) inspectLogicalVolume(ctx context.Context, state *ObservedState, topo Topology, vg *lvm.VolumeGroup) error {
	lv, err := i.lvm.GetLogicalVolume(ctx, topo.VGName, topo.LVName)
	switch {
	case errors.Is(err, lvm.ErrNotFound):
		if vg.LVCount > 0 {
			state.LV = StatusForeign
			return nil
		}
		state.LV = StatusAbsent
	case err != nil:
		return fmt.Errorf("failed to inspect logical volume %s: %w", topo.FullLVName(), err)
	default:
		if vg.LVCount > 1 {
			state.LV = StatusForeign
			return nil
		}
		state.LV = StatusConsistent
		state.LVActive = lv.Active == "active"
	}
	return nil
}

func (i *Inspector) inspectFilesystem(ctx context.Context, state *ObservedState, topo Topology) error {
	sig, err := i.fs.Signature(ctx, topo.LVPath())
	if err != nil {
		return fmt.Errorf("failed to probe filesystem on %s: %w", topo.LVPath(), err)
	}
	state.FSSignature = sig
	switch sig {
	case "":
		state.FS = StatusAbsent
	case topo.FSType:
		state.FS = StatusConsistent
	default:
		state.FS = StatusForeign
	}
	return nil
}

func (i *Inspector) inspectMount(state *ObservedState, topo Topology) error {
	if _, err := os.Stat(topo.MountPath); err != nil {
		if os.IsNotExist(err) {
			state.Mount = StatusAbsent
			return nil
		}
		return fmt.Errorf("failed to stat mount path %s: %w", topo.MountPath, err)
	}

	isMountPoint, err := i.mounter.IsMountPoint(topo.MountPath)
	if err != nil {
		return fmt.Errorf("failed to check mount point %s: %w", topo.MountPath, err)
	}
	if !isMountPoint {
		state.Mount = StatusAbsent
		return nil
	}

	mountedDevice, _, err := mountutils.GetDeviceNameFromMount(i.mounter, topo.MountPath)
	if err != nil {
		return fmt.Errorf("failed to resolve device mounted at %s: %w", topo.MountPath, err)
	}
	state.MountedDevice = mountedDevice
	if devicePathsEqual(mountedDevice, topo.LVPath()) || devicePathsEqual(mountedDevice, topo.MapperPath()) {
		state.Mount = StatusConsistent
	} else {
		state.Mount = StatusForeign
	}
	return nil
}

// devicePathsEqual compares two device paths, resolving symlinks when
// possible so /dev/<vg>/<lv>, /dev/mapper/<vg>-<lv> and /dev/dm-N all
// compare equal.
func devicePathsEqual(a, b string) bool {
	if a == b {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return false
	}
	return ra == rb
}
