// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package provision

import "errors"

var (
	// ErrNoEligibleDevices is returned when discovery finds no usable
	// ephemeral devices and there is no existing volume group to converge.
	ErrNoEligibleDevices = errors.New("no eligible devices found")

	// ErrForeignState is returned when an existing volume group, logical
	// volume, filesystem signature or mount does not match the expected
	// topology. Foreign state is never auto-corrected.
	ErrForeignState = errors.New("foreign state")

	// ErrDegradedMembership is returned when the volume group records more
	// physical volumes than are present on the host. Proceeding would hide
	// capacity loss, so the run fails instead.
	ErrDegradedMembership = errors.New("degraded volume group membership")

	// ErrPostcondition is returned when a step reported success but the
	// recheck shows the expected state was not reached.
	ErrPostcondition = errors.New("postcondition not met")
)
