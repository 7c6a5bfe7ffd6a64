// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package probe

import (
	"context"

	"ephemeral-storage-setup/internal/pkg/block"
)

// Fake is a scanner stub returning a fixed device set.
type Fake struct {
	Devices []block.Device
	Err     error
}

var _ Interface = &Fake{}

func (f *Fake) ScanEligibleDevices(_ context.Context) ([]block.Device, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Devices, nil
}
