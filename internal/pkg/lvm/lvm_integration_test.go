// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"testing"

	"ephemeral-storage-setup/internal/pkg/lvm"
	testdevice "ephemeral-storage-setup/internal/pkg/testutil/device"
)

const gib = int64(1) << 30

// TestClient exercises the real lvm2 tools against loopback devices.
func TestClient(t *testing.T) {
	if !isRoot() {
		t.Skip("Skipping TestClient as it requires root permissions.")
	}

	c := lvm.NewClient()
	ctx := context.Background()

	if !c.IsSupported() {
		t.Fatal("lvm2 is not supported on this host")
	}

	loopDev1, cleanup1, err := testdevice.CreateLoopDevice(gib)
	if err != nil {
		t.Fatalf("failed to create loop device: %v", err)
	}
	defer cleanup1()
	loopDev2, cleanup2, err := testdevice.CreateLoopDevice(gib)
	if err != nil {
		t.Fatalf("failed to create loop device: %v", err)
	}
	defer cleanup2()

	vgName := fmt.Sprintf("test-vg-%d", os.Getpid())
	lvName := "test-lv"
	defer func() {
		// The client intentionally has no destructive operations, so tear
		// down with the tools directly.
		exec.Command("lvm", "vgremove", "--yes", vgName).Run()   //nolint:errcheck
		exec.Command("lvm", "pvremove", "--yes", loopDev1).Run() //nolint:errcheck
		exec.Command("lvm", "pvremove", "--yes", loopDev2).Run() //nolint:errcheck
	}()

	t.Run("physical volumes", func(t *testing.T) {
		if _, err := c.GetPhysicalVolume(ctx, loopDev1); !errors.Is(err, lvm.ErrNotFound) {
			t.Fatalf("expected ErrNotFound before pvcreate, got %v", err)
		}

		if err := c.CreatePhysicalVolume(ctx, lvm.CreatePVOptions{Name: loopDev1}); err != nil {
			t.Fatalf("pvcreate: %v", err)
		}
		if err := c.CreatePhysicalVolume(ctx, lvm.CreatePVOptions{Name: loopDev2}); err != nil {
			t.Fatalf("pvcreate: %v", err)
		}

		pv, err := c.GetPhysicalVolume(ctx, loopDev1)
		if err != nil {
			t.Fatalf("get pv: %v", err)
		}
		if pv.Name != loopDev1 {
			t.Errorf("pv name = %s, want %s", pv.Name, loopDev1)
		}
		if pv.VGName != "" {
			t.Errorf("fresh pv should not belong to a vg, got %q", pv.VGName)
		}
	})

	t.Run("volume group", func(t *testing.T) {
		if err := c.CreateVolumeGroup(ctx, lvm.CreateVGOptions{
			Name:    vgName,
			PVNames: []string{loopDev1},
		}); err != nil {
			t.Fatalf("vgcreate: %v", err)
		}

		if err := c.ExtendVolumeGroup(ctx, lvm.ExtendVGOptions{
			Name:    vgName,
			PVNames: []string{loopDev2},
		}); err != nil {
			t.Fatalf("vgextend: %v", err)
		}

		vg, err := c.GetVolumeGroup(ctx, vgName)
		if err != nil {
			t.Fatalf("get vg: %v", err)
		}
		if int(vg.PVCount) != 2 {
			t.Errorf("pv count = %d, want 2", vg.PVCount)
		}

		pv, err := c.GetPhysicalVolume(ctx, loopDev2)
		if err != nil {
			t.Fatalf("get pv: %v", err)
		}
		if pv.VGName != vgName {
			t.Errorf("pv vg = %q, want %q", pv.VGName, vgName)
		}

		err = c.ExtendVolumeGroup(ctx, lvm.ExtendVGOptions{
			Name:    vgName,
			PVNames: []string{loopDev2},
		})
		if !errors.Is(err, lvm.ErrPVAlreadyInVolumeGroup) {
			t.Errorf("re-extend with a member pv = %v, want ErrPVAlreadyInVolumeGroup", err)
		}
	})

	t.Run("logical volume", func(t *testing.T) {
		stripes := 2
		if err := c.CreateLogicalVolume(ctx, lvm.CreateLVOptions{
			Name:    lvName,
			VGName:  vgName,
			Extents: "100%FREE",
			Stripes: &stripes,
		}); err != nil {
			t.Fatalf("lvcreate: %v", err)
		}

		lv, err := c.GetLogicalVolume(ctx, vgName, lvName)
		if err != nil {
			t.Fatalf("get lv: %v", err)
		}
		if lv.FullName != vgName+"/"+lvName {
			t.Errorf("lv full name = %s", lv.FullName)
		}
		if lv.Active != "active" {
			t.Errorf("lv active = %q, want active", lv.Active)
		}
	})
}

func isRoot() bool {
	u, err := user.Current()
	if err != nil {
		return false
	}
	return u.Uid == "0"
}
