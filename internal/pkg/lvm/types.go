// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

/* SPDX-License-Identifier: Apache-2.0
 *
 * Copyright 2023 Damian Peckett <damian@pecke.tt>.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lvm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// BoolString is a JSON type that treats "1" as true and "0" as false.
type BoolString bool

func (b *BoolString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch v {
	case "1":
		*b = true
	default:
		*b = false
	}

	return nil
}

// IntString is a JSON type for strings that are actually integers.
type IntString int

func (i *IntString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	if v == "" {
		*i = 0
	} else {
		ival, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*i = IntString(ival)
	}

	return nil
}

// Int64String is a custom type for handling int64 values represented as strings in JSON.
type Int64String int64

// UnmarshalJSON implements the json.Unmarshaler interface.
func (i *Int64String) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	s = strings.TrimSuffix(s, "B")
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*i = Int64String(value)
	return nil
}

// YesNo is a boolean type that marshals to "y" or "n".
type YesNo bool

var (
	Yes = PtrTo(YesNo(true))
	No  = PtrTo(YesNo(false))
)

func (yn *YesNo) MarshalArg() string {
	if *yn {
		return "y"
	}
	return "n"
}

func PtrTo[T any](v T) *T {
	return &v
}

// PhysicalVolume represents an LVM2 Physical Volume (PV).
type PhysicalVolume struct {
	Format       string     `json:"pv_fmt"`            // Type of metadata.
	UUID         string     `json:"pv_uuid"`           // Unique identifier of the PV.
	DeviceSize   string     `json:"dev_size"`          // Size of the underlying device in current units.
	Name         string     `json:"pv_name"`           // Name of the PV.
	Size         string     `json:"pv_size"`           // Size of the physical volume in current units.
	FreeSpace    string     `json:"pv_free"`           // Total unallocated space in current units.
	UsedSpace    string     `json:"pv_used"`           // Total allocated space in current units.
	Attributes   string     `json:"pv_attr"`           // Various attributes of the PV.
	Allocatable  BoolString `json:"pv_allocatable"`    // Indicates if device can be used for allocation.
	Exported     BoolString `json:"pv_exported"`       // Indicates if device is exported.
	Missing      BoolString `json:"pv_missing"`        // Indicates if device is missing in system.
	Tags         string     `json:"pv_tags"`           // Tags associated with the physical volume, if any.
	InUse        BoolString `json:"pv_in_use"`         // Indicates if the physical volume is used.
	Duplicate    BoolString `json:"pv_duplicate"`      // Indicates if PV is an unchosen duplicate.
	DeviceID     string     `json:"pv_device_id"`      // Device ID such as the WWID.
	DeviceIDType string     `json:"pv_device_id_type"` // Type of the device ID, such as WWID.
	VGName       string     `json:"vg_name"`           // Name of the VG the PV belongs to.
}

// ListPVOptions provides options for listing PVs (pvs).
type ListPVOptions struct {
	CommonOptions
	Names                []string `arg:"0"`                    // Specific PVs to display.
	All                  bool     `arg:"all"`                  // Display devices not initialized by LVM.
	Select               string   `arg:"select"`               // Filters objects based on criteria.
	IgnoreLockingFailure bool     `arg:"ignorelockingfailure"` // Whether to proceed in read-only mode after lock failures.
	ReadOnly             bool     `arg:"readonly"`             // Read metadata without locks.
}

// CreatePVOptions provides options for creating PVs (pvcreate).
type CreatePVOptions struct {
	CommonOptions
	Name           string `arg:"0"`              // Device or PV to create.
	Force          bool   `arg:"force"`          // Override checks and protections.
	UUID           string `arg:"uuid"`           // Specific UUID for the device.
	Zero           *YesNo `arg:"zero"`           // Wipe first 4 sectors of the device unless UUID is given.
	DataAlignment  string `arg:"dataalignment"`  // Align PV data's start.
	MetadataSize   string `arg:"metadatasize"`   // Space for each VG metadata area.
	MetadataIgnore *YesNo `arg:"metadataignore"` // If set, metadata won't be stored on the PV.
}

// VolumeGroup represents an LVM2 Volume Group (VG).
type VolumeGroup struct {
	Format          string      `json:"vg_fmt"`              // Type of metadata.
	UUID            string      `json:"vg_uuid"`             // Unique identifier.
	Name            string      `json:"vg_name"`             // Name of the VG.
	Attributes      string      `json:"vg_attr"`             // Various attributes.
	Extendable      BoolString  `json:"vg_extendable"`       // Set if VG is extendable.
	Exported        BoolString  `json:"vg_exported"`         // Set if VG is exported.
	Partial         BoolString  `json:"vg_partial"`          // Set if VG is partial.
	Size            Int64String `json:"vg_size"`             // Total size of VG in current units.
	Free            Int64String `json:"vg_free"`             // Total amount of free space in current units.
	ExtentSize      Int64String `json:"vg_extent_size"`      // Size of Physical Extents in current units.
	ExtentCount     IntString   `json:"vg_extent_count"`     // Total number of Physical Extents.
	ExtentFreeCount IntString   `json:"vg_free_count"`       // Total number of unallocated Physical Extents.
	PVCount         IntString   `json:"pv_count"`            // Number of PVs in VG.
	MissingPVCount  IntString   `json:"vg_missing_pv_count"` // Number of PVs in VG which are missing.
	LVCount         IntString   `json:"lv_count"`            // Number of LVs.
	SnapshotCount   IntString   `json:"snap_count"`          // Number of snapshots.
	SeqNo           IntString   `json:"vg_seqno"`            // Revision number of internal metadata. Incremented whenever it changes.
	Tags            string      `json:"vg_tags"`             // Tags, if any.
}

// ListVGOptions provides options for listing VGs (vgs).
type ListVGOptions struct {
	CommonOptions
	Names                []string `arg:"0"`                    // Specific VGs to display.
	Select               string   `arg:"select"`               // Filters objects based on criteria.
	IgnoreLockingFailure bool     `arg:"ignorelockingfailure"` // Whether to proceed in read-only mode after lock failures.
	ReadOnly             bool     `arg:"readonly"`             // Read metadata without locks.
}

// CreateVGOptions provides options for creating VGs (vgcreate).
type CreateVGOptions struct {
	CommonOptions
	Name               string   `arg:"0"`                  // Name of the VG to create.
	PVNames            []string `arg:"1"`                  // List of PVs to add to the VG.
	Force              bool     `arg:"force"`              // Overrides checks and protections.
	AutoBackup         *YesNo   `arg:"autobackup"`         // Auto backup metadata after changes.
	PhysicalExtentSize string   `arg:"physicalextentsize"` // Extent size of PVs in the group.
	Zero               *YesNo   `arg:"zero"`               // Wipe first 4 sectors of the device.
	Tags               []string `arg:"addtag"`             // Tags to add to the VG.
	SetAutoActivation  *YesNo   `arg:"setautoactivation"`  // Enable autoactivation for the VG.
}

// ExtendVGOptions provides options for extending VGs (vgextend).
type ExtendVGOptions struct {
	CommonOptions
	Name           string   `arg:"0"`              // Name of the VG to extend.
	PVNames        []string `arg:"1"`              // List of PVs to add to the VG.
	AutoBackup     *YesNo   `arg:"autobackup"`     // Auto backup metadata after changes.
	Force          bool     `arg:"force"`          // Override checks and protections.
	Zero           *YesNo   `arg:"zero"`           // Wipe first 4 sectors of the device.
	RestoreMissing bool     `arg:"restoremissing"` // Add a PV back into a VG after the PV was missing and then returned.
}

// LogicalVolume represents an LVM2 Logical Volume (LV).
type LogicalVolume struct {
	UUID         string      `json:"lv_uuid"`          // Unique identifier.
	Name         string      `json:"lv_name"`          // Name. LVs created for internal use are enclosed in brackets.
	FullName     string      `json:"lv_full_name"`     // Full name of LV including its VG, namely VG/LV.
	Path         string      `json:"lv_path"`          // Full pathname for LV. Blank for internal LVs.
	DMPath       string      `json:"lv_dm_path"`       // Internal device-mapper pathname for LV (in /dev/mapper directory).
	VGName       string      `json:"vg_name"`          // Name of the VG the LV belongs to.
	Layout       string      `json:"lv_layout"`        // LV layout.
	Role         string      `json:"lv_role"`          // LV role.
	Active       string      `json:"lv_active"`        // Active state of the LV.
	Size         Int64String `json:"lv_size"`          // Size of LV in current units.
	Attributes   string      `json:"lv_attr"`          // LV attributes.
	Tags         string      `json:"lv_tags"`          // Tags, if any.
	HealthStatus string      `json:"lv_health_status"` // LV health status.
	Type         string      `json:"segtype"`          // Type of LV segment.
	Stripes      IntString   `json:"stripes"`          // Number of stripes or mirror/raid1 legs.
	StripeSize   string      `json:"stripe_size"`      // For stripes, amount of data placed on one device before switching to the next.
	Devices      string      `json:"devices"`          // Underlying devices used with starting extent numbers.
}

// ListLVOptions provides options for listing LVs (lvs).
type ListLVOptions struct {
	CommonOptions
	Names                []string `arg:"0"`                    // Specific LVs to display.
	All                  bool     `arg:"all"`                  // Display information about hidden internal LVs.
	Select               string   `arg:"select"`               // Filters objects based on criteria.
	IgnoreLockingFailure bool     `arg:"ignorelockingfailure"` // Whether to proceed in read-only mode after lock failures.
	ReadOnly             bool     `arg:"readonly"`             // Read metadata without locks.
}

// CreateLVOptions provides options for creating LVs (lvcreate).
type CreateLVOptions struct {
	CommonOptions
	Name              string   `arg:"name"`              // Name of the LV to create.
	VGName            string   `arg:"0"`                 // Name of the VG to create the LV in.
	Activate          *YesNo   `arg:"activate"`          // Activate the LV.
	AutoBackup        *YesNo   `arg:"autobackup"`        // Auto backup metadata after changes.
	ReadAhead         string   `arg:"readahead"`         // Read-ahead sector count.
	WipeSignatures    *YesNo   `arg:"wipesignatures"`    // Wipe existing filesystem signatures.
	Zero              *YesNo   `arg:"zero"`              // Zero the first 4KiB of data in the new LV.
	Tags              []string `arg:"addtag"`            // Tags to add to the LV.
	SetAutoActivation *YesNo   `arg:"setautoactivation"` // Enable autoactivation for the LV.
	Type              string   `arg:"type"`              // Type of LV to create.
	Size              string   `arg:"size"`              // Size of the LV.
	Extents           string   `arg:"extents"`           // Size of the LV in logical extents.
	Stripes           *int     `arg:"stripes"`           // Number of stripes in a striped LV.
	StripeSize        string   `arg:"stripesize"`        // Amount of data that is written to one device before moving to the next.
}

// UpdateLVOptions provides options for modifying LVs (lvchange).
type UpdateLVOptions struct {
	CommonOptions
	Name                 string `arg:"0"`                    // Name of the LV to modify.
	Force                bool   `arg:"force"`                // Override checks and protections.
	Refresh              bool   `arg:"refresh"`              // Refreshes the LV metadata.
	Activate             *YesNo `arg:"activate"`             // Activate the LV.
	AutoBackup           *YesNo `arg:"autobackup"`           // Auto backup metadata after changes.
	ReadAhead            string `arg:"readahead"`            // Read-ahead sector count.
	SetAutoActivation    *YesNo `arg:"setautoactivation"`    // Enable autoactivation for the LV.
	IgnoreActivationSkip bool   `arg:"ignoreactivationskip"` // Ignore the "activation skip" flag.
}

// CommonOptions holds configurations for LVM2 commands.
type CommonOptions struct {
	Config      string   `arg:"config"`      // Overrides lvm.conf settings.
	NoLocking   bool     `arg:"nolocking"`   // Disables locking.
	Profile     string   `arg:"profile"`     // Command profile.
	DevicesFile string   `arg:"devicesfile"` // LVM device file (from /etc/lvm/devices/).
	Devices     []string `arg:"devices"`     // Overrides lvm.conf devices.
	NoHints     bool     `arg:"nohints"`     // Disables PV location hint.
}
