// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `cloudProvider: aws
vgName: scratch-vg
expectedDevices: 2
removeTaint: true
nodeName: node-1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.VGName != "scratch-vg" {
		t.Errorf("vgName = %q, want scratch-vg", cfg.VGName)
	}
	if cfg.ExpectedDevices != 2 {
		t.Errorf("expectedDevices = %d, want 2", cfg.ExpectedDevices)
	}
	// Untouched keys keep their defaults.
	if cfg.LVName != "instance-store-lv" {
		t.Errorf("lvName = %q, want the default", cfg.LVName)
	}
	if cfg.ReadAheadKB != 20480 {
		t.Errorf("readAheadKB = %d, want the default", cfg.ReadAheadKB)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("config should validate: %v", err)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("volumeGroupName: oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := cfg.LoadFile(path); err == nil {
		t.Fatal("expected an error for an unknown key")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.CloudProvider = "aws"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing provider",
			mutate:  func(c *Config) { c.CloudProvider = "" },
			wantErr: "cloud provider",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.CloudProvider = "digitalocean" },
			wantErr: "unknown cloud provider",
		},
		{
			name:    "relative mount path",
			mutate:  func(c *Config) { c.MountPath = "mnt/scratch" },
			wantErr: "must be absolute",
		},
		{
			name:    "taint without node name",
			mutate:  func(c *Config) { c.RemoveTaint = true },
			wantErr: "node name",
		},
		{
			name:    "negative expected devices",
			mutate:  func(c *Config) { c.ExpectedDevices = -1 },
			wantErr: "not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestMountOptionsList(t *testing.T) {
	cfg := Config{MountOptions: "noatime, nodiratime,,discard"}
	want := []string{"noatime", "nodiratime", "discard"}
	if got := cfg.MountOptionsList(); !reflect.DeepEqual(got, want) {
		t.Errorf("options = %v, want %v", got, want)
	}

	cfg.MountOptions = ""
	if got := cfg.MountOptionsList(); got != nil {
		t.Errorf("empty options = %v, want nil", got)
	}
}
