// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package provision converges the host's eligible ephemeral disks into a
// single mounted logical volume: inspect what exists, plan the missing
// layers, apply the plan step by step.
package provision

import (
	"os"

	"ephemeral-storage-setup/internal/pkg/mount"
)

// Topology is the desired end state: one volume group spanning the eligible
// devices, one logical volume consuming its full capacity, formatted and
// mounted. It is derived from configuration once and never inferred from
// disk.
type Topology struct {
	// VGName is the well-known volume group name. Fixed across runs so a
	// restart recognizes its own state.
	VGName string
	// LVName is the logical volume name inside the group.
	LVName string
	// FSType is the filesystem type, e.g. "xfs".
	FSType string
	// MountPath is the target mount point.
	MountPath string
	// MountOptions are passed to the mount call.
	MountOptions []string
	// MountUID and MountGID set ownership of the mount point after a
	// mount. Negative values leave ownership unchanged.
	MountUID int
	MountGID int
	// MountMode sets permissions on the mount point. Zero leaves them
	// unchanged.
	MountMode os.FileMode
	// ExpectedDevices, when positive, makes discovery of fewer devices a
	// fatal error. Zero means at least one device is required only on
	// first provisioning.
	ExpectedDevices int
}

// LVPath returns the /dev/<vg>/<lv> path of the logical volume.
func (t Topology) LVPath() string {
	return "/dev/" + t.VGName + "/" + t.LVName
}

// MapperPath returns the /dev/mapper path of the logical volume.
func (t Topology) MapperPath() string {
	return mount.MapperPath(t.VGName, t.LVName)
}

// FullLVName returns the vg/lv form used by lvm commands.
func (t Topology) FullLVName() string {
	return t.VGName + "/" + t.LVName
}
