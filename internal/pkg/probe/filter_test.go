// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package probe

import (
	"testing"

	"ephemeral-storage-setup/internal/pkg/block"
)

const gib = int64(1) << 30

func rawDisk(path, serial string, size int64) block.Device {
	return block.Device{
		Name:   path[len("/dev/"):],
		Path:   path,
		Type:   "disk",
		Serial: serial,
		Size:   size,
	}
}

func TestProviderFilter(t *testing.T) {
	rootDisk := block.Device{
		Name: "nvme0n1",
		Path: "/dev/nvme0n1",
		Type: "disk",
		Size: 100 * gib,
		Children: []block.Device{
			{Name: "nvme0n1p1", Path: "/dev/nvme0n1p1", Type: "part", Mountpoint: "/boot"},
			{Name: "nvme0n1p2", Path: "/dev/nvme0n1p2", Type: "part", Mountpoints: []string{"/"}},
		},
		PTType: "gpt",
	}

	instanceStore := rawDisk("/dev/nvme1n1", "AWS22A8E96BD8C5D98A1", 200*gib)
	instanceStore.Model = "Amazon EC2 NVMe Instance Storage"

	provisioned := instanceStore
	provisioned.FSType = block.LVMMemberSignature
	provisioned.Children = []block.Device{
		{Name: "vg-lv", Path: "/dev/mapper/vg-lv", Type: "lvm", FSType: "xfs", Mountpoint: "/mnt/instance-store"},
	}

	ebsVolume := rawDisk("/dev/nvme2n1", "vol0a1b2c3d4e5f6a7b8", 500*gib)
	ebsVolume.Model = "Amazon Elastic Block Store"

	foreignDisk := rawDisk("/dev/nvme3n1", "AWS1111111111111111", 200*gib)
	foreignDisk.Model = "Amazon EC2 NVMe Instance Storage"
	foreignDisk.FSType = "ext4"

	partitionedDisk := rawDisk("/dev/nvme4n1", "AWS2222222222222222", 200*gib)
	partitionedDisk.Model = "Amazon EC2 NVMe Instance Storage"
	partitionedDisk.PTType = "dos"

	smallDisk := rawDisk("/dev/nvme5n1", "AWS3333333333333333", 1*gib)
	smallDisk.Model = "Amazon EC2 NVMe Instance Storage"

	usbStick := rawDisk("/dev/sda", "usb-0001", 64*gib)
	usbStick.Removable = true

	tests := []struct {
		name     string
		provider CloudProvider
		device   block.Device
		want     bool
	}{
		{"aws raw instance store", AWS, instanceStore, true},
		{"aws provisioned instance store still matches", AWS, provisioned, true},
		{"aws root disk excluded", AWS, rootDisk, false},
		{"aws ebs volume excluded by model", AWS, ebsVolume, false},
		{"aws foreign filesystem excluded", AWS, foreignDisk, false},
		{"aws partition table excluded", AWS, partitionedDisk, false},
		{"aws below minimum size excluded", AWS, smallDisk, false},
		{"generic removable excluded", Generic, usbStick, false},
		{"generic matches any raw disk", Generic, rawDisk("/dev/vdb", "", 50*gib), true},
		{"generic root disk excluded", Generic, rootDisk, false},
		{"azure model mismatch", Azure, instanceStore, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ProviderFilter(tt.provider, 4*gib, block.LVMMemberSignature)
			if got := f.Match(tt.device); got != tt.want {
				t.Errorf("Match(%s) = %v, want %v", tt.device.Path, got, tt.want)
			}
		})
	}
}

// A reboot leaves the swap signature on disk while /proc/swaps starts
// empty, so the swap detector must keep treating mkswap'd devices as
// eligible or they would never be re-enabled.
func TestProviderFilterOwnedSignatures(t *testing.T) {
	swapped := rawDisk("/dev/nvme1n1", "AWS22A8E96BD8C5D98A1", 200*gib)
	swapped.Model = "Amazon EC2 NVMe Instance Storage"
	swapped.FSType = block.SwapSignature

	if f := ProviderFilter(AWS, 4*gib, block.SwapSignature); !f.Match(swapped) {
		t.Error("swap-owned filter should keep a swap-formatted device eligible")
	}
	if f := ProviderFilter(AWS, 4*gib, block.LVMMemberSignature); f.Match(swapped) {
		t.Error("lvm-owned filter should treat a swap signature as foreign")
	}
}

func TestModelFilterNormalization(t *testing.T) {
	f := NewModelFilter("Microsoft NVMe Direct Disk")
	dev := block.Device{Model: "  microsoft nvme direct disk  "}
	if !f.Match(dev) {
		t.Errorf("expected model match to ignore case and padding")
	}
}

func TestUnclaimedFilter(t *testing.T) {
	f := &UnclaimedFilter{OwnedFSTypes: []string{block.LVMMemberSignature}}
	tests := []struct {
		name   string
		device block.Device
		want   bool
	}{
		{"no signature", block.Device{}, true},
		{"lvm member", block.Device{FSType: block.LVMMemberSignature}, true},
		{"xfs", block.Device{FSType: "xfs"}, false},
		{"swap not owned here", block.Device{FSType: block.SwapSignature}, false},
		{"partition table", block.Device{PTType: "gpt"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Match(tt.device); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}
