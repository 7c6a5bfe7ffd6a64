// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package probe classifies the host's block devices into eligible
// instance-store candidates.
package probe

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-logr/logr"

	"ephemeral-storage-setup/internal/pkg/block"
)

// Interface enumerates the block devices that are safe to provision.
type Interface interface {
	ScanEligibleDevices(ctx context.Context) ([]block.Device, error)
}

var _ Interface = &deviceScanner{}

// deviceScanner implements Interface on top of lsblk output.
type deviceScanner struct {
	block.Interface
	filter *Filter
	log    logr.Logger
}

// New creates a new deviceScanner instance.
func New(b block.Interface, f *Filter, log logr.Logger) Interface {
	return &deviceScanner{b, f, log}
}

// ScanEligibleDevices returns the eligible candidate devices in a
// deterministic order (sorted by stable identifier), so that downstream
// layers behave identically regardless of kernel enumeration order.
//
// Finding zero eligible devices is not an error here; the planner decides
// whether an empty candidate set is acceptable.
func (m *deviceScanner) ScanEligibleDevices(ctx context.Context) ([]block.Device, error) {
	devices, err := m.GetDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	var eligible []block.Device
	for _, device := range devices.Devices {
		if !m.filter.Match(device) {
			m.log.V(2).Info("device filtered out", "device", device.Path, "model", device.Model, "fstype", device.FSType)
			continue
		}
		m.log.V(1).Info("eligible device found", "device", device.Path, "id", device.StableID(), "size", device.Size)
		eligible = append(eligible, device)
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].StableID() < eligible[j].StableID()
	})
	return eligible, nil
}
