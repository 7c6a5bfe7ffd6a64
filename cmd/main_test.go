// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"ephemeral-storage-setup/internal/provision"
)

func TestUserDataArgs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user-data")
	if err := os.WriteFile(path, []byte(`["lvm", "--cloud-provider=aws"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	args, err := userDataArgs(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 || args[0] != "lvm" || args[1] != "--cloud-provider=aws" {
		t.Errorf("args = %v", args)
	}
}

func TestUserDataArgsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user-data")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := userDataArgs(path); err == nil {
		t.Fatal("expected an error for malformed user data")
	}

	if _, err := userDataArgs(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--config", "/etc/setup.yaml"}, "/etc/setup.yaml"},
		{[]string{"--config=/etc/setup.yaml"}, "/etc/setup.yaml"},
		{[]string{"-config=/etc/setup.yaml"}, "/etc/setup.yaml"},
		{[]string{"--vg-name", "x"}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := configPathFromArgs(tt.args); got != tt.want {
			t.Errorf("configPathFromArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `cloudProvider: aws
vgName: from-file
fsType: ext4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FS_TYPE", "xfs")

	cfg, _, err := loadConfig("lvm", []string{
		"--config", path,
		"--vg-name", "from-flag",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.CloudProvider != "aws" {
		t.Errorf("cloudProvider = %q, want the file value", cfg.CloudProvider)
	}
	if cfg.FSType != "xfs" {
		t.Errorf("fsType = %q, environment should override the file", cfg.FSType)
	}
	if cfg.VGName != "from-flag" {
		t.Errorf("vgName = %q, flags should override everything", cfg.VGName)
	}
	if cfg.MountPath != "/mnt/instance-store" {
		t.Errorf("mountPath = %q, want the default", cfg.MountPath)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("wrapped: %w", provision.ErrNoEligibleDevices), exitDiscovery},
		{fmt.Errorf("wrapped: %w", provision.ErrForeignState), exitForeign},
		{fmt.Errorf("wrapped: %w", provision.ErrDegradedMembership), exitDegraded},
		{fmt.Errorf("wrapped: %w", provision.ErrPostcondition), exitToolFailure},
		{errors.New("lvm exploded"), exitToolFailure},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
