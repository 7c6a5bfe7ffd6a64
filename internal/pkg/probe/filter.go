// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package probe

import (
	"strings"

	"ephemeral-storage-setup/internal/pkg/block"
)

// CloudProvider selects the filter chain used to recognize instance-store
// disks for a given platform.
type CloudProvider string

const (
	AWS     CloudProvider = "aws"
	GCP     CloudProvider = "gcp"
	Azure   CloudProvider = "azure"
	Generic CloudProvider = "generic"
)

// ProviderFilter returns the ephemeral-disk filter for the given cloud
// provider. Generic matches any safe candidate disk; the provider-specific
// chains additionally pin the device model and path so that attached network
// volumes are never picked up.
//
// ownedFSTypes lists the signatures a prior run of the same subcommand
// leaves behind (the LVM physical-volume label, the swap signature).
// Devices carrying one of them stay eligible across reboots; any other
// signature is foreign and excludes the device.
func ProviderFilter(provider CloudProvider, minSize int64, ownedFSTypes ...string) *Filter {
	base := []FilterPredicate{
		&TypeFilter{Type: "disk"},
		&NotRemovableFilter{},
		&NotRootDiskFilter{},
		&UnclaimedFilter{OwnedFSTypes: ownedFSTypes},
		&MinSizeFilter{MinSize: minSize},
	}
	switch provider {
	case AWS:
		return &Filter{Filters: append(base,
			&PathFilter{Path: "/dev/nvme"},
			NewModelFilter("Amazon EC2 NVMe Instance Storage"),
		)}
	case GCP:
		return &Filter{Filters: append(base,
			NewModelFilter("nvme_card", "EphemeralDisk"),
		)}
	case Azure:
		return &Filter{Filters: append(base,
			&PathFilter{Path: "/dev/nvme"},
			NewModelFilter("Microsoft NVMe Direct Disk", "Microsoft NVMe Direct Disk v2"),
		)}
	default:
		return &Filter{Filters: base}
	}
}

// FilterPredicate defines a predicate for filtering devices.
type FilterPredicate interface {
	Match(device block.Device) bool
}

// Filter holds multiple filters and matches if all contained filters match.
type Filter struct {
	Filters []FilterPredicate
}

func (f *Filter) Match(device block.Device) bool {
	for _, filter := range f.Filters {
		if !filter.Match(device) {
			return false
		}
	}
	return true
}

// PathFilter matches devices by path prefix.
type PathFilter struct {
	Path string
}

func (f *PathFilter) Match(device block.Device) bool {
	return strings.HasPrefix(device.Path, f.Path)
}

// TypeFilter matches devices by type.
type TypeFilter struct {
	Type string
}

func (f *TypeFilter) Match(device block.Device) bool {
	return strings.EqualFold(device.Type, f.Type)
}

// MinSizeFilter matches devices at or above a minimum size in bytes.
type MinSizeFilter struct {
	MinSize int64
}

func (f *MinSizeFilter) Match(device block.Device) bool {
	return device.Size >= f.MinSize
}

// NotRemovableFilter excludes removable media.
type NotRemovableFilter struct{}

func (f *NotRemovableFilter) Match(device block.Device) bool {
	return !device.Removable
}

// NotRootDiskFilter excludes the device backing the root filesystem. The
// root mount is found by walking the device's partition/LV subtree, which
// removes the whole disk (and thus all ancestors of the root partition) from
// candidacy.
type NotRootDiskFilter struct{}

func (f *NotRootDiskFilter) Match(device block.Device) bool {
	return !device.HasMountpoint("/")
}

// UnclaimedFilter excludes devices that carry a foreign signature: a
// partition table or any filesystem type not in OwnedFSTypes. Devices with
// no signature at all always pass.
type UnclaimedFilter struct {
	// OwnedFSTypes are the signatures written by a prior run of this
	// tool, recognized as our own rather than foreign.
	OwnedFSTypes []string
}

func (f *UnclaimedFilter) Match(device block.Device) bool {
	if device.PTType != "" {
		return false
	}
	if device.FSType == "" {
		return true
	}
	for _, fstype := range f.OwnedFSTypes {
		if device.FSType == fstype {
			return true
		}
	}
	return false
}

func NewModelFilter(models ...string) *ModelFilter {
	modelsMap := make(map[string]struct{}, len(models))
	for _, model := range models {
		model = strings.TrimSpace(model)
		model = strings.ToLower(model)
		modelsMap[model] = struct{}{}
	}
	return &ModelFilter{models: modelsMap}
}

// ModelFilter matches devices by model.
type ModelFilter struct {
	models map[string]struct{}
}

func (f *ModelFilter) Match(device block.Device) bool {
	deviceModel := strings.TrimSpace(device.Model)
	deviceModel = strings.ToLower(deviceModel)
	_, exists := f.models[deviceModel]
	return exists
}
