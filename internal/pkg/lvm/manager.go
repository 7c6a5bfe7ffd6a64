// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package lvm manages LVM2 physical volumes, volume groups and logical
// volumes by shelling out to the lvm binary.
// Only lvm2 format is supported.
package lvm

import (
	"context"
)

const (
	// SupportedFormat is the supported LVM format.
	SupportedFormat = "lvm2"
)

// Manager is an interface for managing LVM.
//
// This is used to manage LVM resources like PV, VG, and LV and contains
// methods to create, extend, and list them. context is used to cancel the
// operation if required.
type Manager interface {
	// IsSupported returns true if LVM is supported on the current node.
	IsSupported() bool
	// CreatePhysicalVolume creates a PV on a block device.
	CreatePhysicalVolume(ctx context.Context, opts CreatePVOptions) error
	// ListPhysicalVolumes returns the list of PVs.
	ListPhysicalVolumes(ctx context.Context, opts *ListPVOptions) ([]PhysicalVolume, error)
	// GetPhysicalVolume returns the named PV.
	GetPhysicalVolume(ctx context.Context, pvName string) (*PhysicalVolume, error)
	// CreateVolumeGroup creates a VG on the PVs.
	CreateVolumeGroup(ctx context.Context, opts CreateVGOptions) error
	// ExtendVolumeGroup adds PVs to an existing VG.
	ExtendVolumeGroup(ctx context.Context, opts ExtendVGOptions) error
	// ListVolumeGroups lists the specified VGs.
	ListVolumeGroups(ctx context.Context, opts *ListVGOptions) ([]VolumeGroup, error)
	// GetVolumeGroup returns the named VG.
	GetVolumeGroup(ctx context.Context, vgName string) (*VolumeGroup, error)
	// CreateLogicalVolume creates an LV on a VG.
	CreateLogicalVolume(ctx context.Context, opts CreateLVOptions) error
	// UpdateLogicalVolume changes LV attributes, e.g. activation.
	UpdateLogicalVolume(ctx context.Context, opts UpdateLVOptions) error
	// ListLogicalVolumes lists the specified LVs.
	ListLogicalVolumes(ctx context.Context, opts *ListLVOptions) ([]LogicalVolume, error)
	// GetLogicalVolume returns the named LV.
	GetLogicalVolume(ctx context.Context, vgName string, lvName string) (*LogicalVolume, error)
}
