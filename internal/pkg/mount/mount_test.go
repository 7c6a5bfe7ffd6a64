// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package mount

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	mountutils "k8s.io/mount-utils"
)

func TestEnsureMountedFresh(t *testing.T) {
	target := filepath.Join(t.TempDir(), "instance-store")
	fake := mountutils.NewFakeMounter(nil)

	changed, err := New(fake, logr.Discard()).EnsureMounted(
		context.Background(),
		[]string{"/dev/instance-store-vg/instance-store-lv", "/dev/mapper/instance--store--vg-instance--store--lv"},
		target, "xfs", []string{"noatime", "nodiratime"},
	)
	if err != nil {
		t.Fatalf("EnsureMounted() error = %v", err)
	}
	if !changed {
		t.Error("expected a mount to be performed")
	}

	mounts, err := fake.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(mounts) != 1 || mounts[0].Device != "/dev/instance-store-vg/instance-store-lv" || mounts[0].Path != target {
		t.Errorf("unexpected mount table: %+v", mounts)
	}
}

func TestEnsureMountedAlreadyMounted(t *testing.T) {
	target := filepath.Join(t.TempDir(), "instance-store")
	fake := mountutils.NewFakeMounter([]mountutils.MountPoint{
		{Device: "/dev/mapper/instance--store--vg-instance--store--lv", Path: target, Type: "xfs"},
	})

	changed, err := New(fake, logr.Discard()).EnsureMounted(
		context.Background(),
		[]string{"/dev/instance-store-vg/instance-store-lv", "/dev/mapper/instance--store--vg-instance--store--lv"},
		target, "xfs", nil,
	)
	if err != nil {
		t.Fatalf("EnsureMounted() error = %v", err)
	}
	if changed {
		t.Error("expected no mount for an already mounted device")
	}
}

func TestEnsureMountedForeignClaim(t *testing.T) {
	target := filepath.Join(t.TempDir(), "instance-store")
	fake := mountutils.NewFakeMounter([]mountutils.MountPoint{
		{Device: "/dev/sdb1", Path: target, Type: "ext4"},
	})

	_, err := New(fake, logr.Discard()).EnsureMounted(
		context.Background(),
		[]string{"/dev/instance-store-vg/instance-store-lv"},
		target, "xfs", nil,
	)
	if err == nil {
		t.Fatal("expected an error when the target is claimed by another device")
	}
}

func TestMapperPath(t *testing.T) {
	tests := []struct {
		vg, lv string
		want   string
	}{
		{"vg", "lv", "/dev/mapper/vg-lv"},
		{"instance-store-vg", "instance-store-lv", "/dev/mapper/instance--store--vg-instance--store--lv"},
	}
	for _, tt := range tests {
		if got := MapperPath(tt.vg, tt.lv); got != tt.want {
			t.Errorf("MapperPath(%q, %q) = %q, want %q", tt.vg, tt.lv, got, tt.want)
		}
	}
}
