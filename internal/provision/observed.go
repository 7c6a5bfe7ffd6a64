// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package provision

// Status classifies one topology layer as observed on the host.
type Status string

const (
	// StatusAbsent means the layer does not exist yet.
	StatusAbsent Status = "absent"
	// StatusConsistent means the layer exists and matches the topology.
	StatusConsistent Status = "consistent"
	// StatusForeign means the layer exists but does not match the
	// topology. Foreign layers halt provisioning.
	StatusForeign Status = "foreign"
	// StatusDegraded means the volume group is missing recorded physical
	// volumes.
	StatusDegraded Status = "degraded"
)

// ObservedState is a run-time snapshot of which topology layers exist and
// whether they are consistent. It is rebuilt on every run and never
// persisted; on-disk volume metadata is the single source of truth.
type ObservedState struct {
	// Unlabeled lists candidate device paths that carry no physical
	// volume signature yet.
	Unlabeled []string
	// NewMembers lists candidate device paths not yet part of the volume
	// group. When the group is absent this is every candidate.
	NewMembers []string
	// ClaimedElsewhere lists candidate device paths whose physical volume
	// belongs to a different volume group. They are dropped from
	// candidacy, not touched.
	ClaimedElsewhere []string

	// VG is the volume group layer status.
	VG Status
	// VGDetail carries a human-readable explanation for foreign or
	// degraded group state.
	VGDetail string

	// LV is the logical volume layer status.
	LV Status
	// LVActive reports whether an existing logical volume is active.
	LVActive bool

	// FS is the filesystem layer status.
	FS Status
	// FSSignature is the signature found on the logical volume, if any.
	FSSignature string

	// Mount is the mount layer status.
	Mount Status
	// MountedDevice is the device occupying the mount path, if any.
	MountedDevice string
}
