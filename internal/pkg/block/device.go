// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package block

import "strings"

const (
	// LVMMemberSignature is the filesystem signature lsblk and blkid report
	// for a device that has been labeled as an LVM2 physical volume.
	LVMMemberSignature = "LVM2_member"

	// SwapSignature is the filesystem signature a device carries after
	// mkswap.
	SwapSignature = "swap"
)

// Device represents a block device in the lsblk output.
type Device struct {
	Name        string   `json:"name"`
	KName       string   `json:"kname,omitempty"`
	Path        string   `json:"path,omitempty"`
	MajMin      string   `json:"maj:min,omitempty"`
	Removable   bool     `json:"rm,omitempty"`
	ReadOnly    bool     `json:"ro,omitempty"`
	Type        string   `json:"type,omitempty"`
	Mountpoint  string   `json:"mountpoint,omitempty"`
	Mountpoints []string `json:"mountpoints,omitempty"`
	FSType      string   `json:"fstype,omitempty"`
	PTType      string   `json:"pttype,omitempty"`
	Model       string   `json:"model,omitempty"`
	Serial      string   `json:"serial,omitempty"`
	WWN         string   `json:"wwn,omitempty"`
	Transport   string   `json:"tran,omitempty"`
	Size        int64    `json:"size,omitempty"`
	Children    []Device `json:"children,omitempty"`
}

// DeviceList represents the output of the lsblk command.
type DeviceList struct {
	Devices []Device `json:"blockdevices"`
}

// StableID returns an identifier for the device that survives device
// renumbering across boots: the serial number when present, then the WWN,
// then the device path as a last resort.
func (d Device) StableID() string {
	if s := strings.TrimSpace(d.Serial); s != "" {
		return s
	}
	if s := strings.TrimSpace(d.WWN); s != "" {
		return s
	}
	return d.Path
}

// HasMountpoint reports whether the device or any of its descendants
// (partitions, LVs) is mounted at the given path.
func (d Device) HasMountpoint(path string) bool {
	if d.Mountpoint == path {
		return true
	}
	for _, mp := range d.Mountpoints {
		if mp == path {
			return true
		}
	}
	for _, child := range d.Children {
		if child.HasMountpoint(path) {
			return true
		}
	}
	return false
}
