// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package config holds the runtime configuration shared by the
// subcommands, with optional YAML overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"ephemeral-storage-setup/internal/pkg/probe"
)

// Config is the full configuration surface. Field values follow the
// precedence file < environment < flags, applied by the caller.
type Config struct {
	CloudProvider string `json:"cloudProvider"`

	VGName       string `json:"vgName"`
	LVName       string `json:"lvName"`
	FSType       string `json:"fsType"`
	MountPath    string `json:"mountPath"`
	MountOptions string `json:"mountOptions"`
	MountUID     int    `json:"mountUID"`
	MountGID     int    `json:"mountGID"`

	MinDeviceSize   int64 `json:"minDeviceSize"`
	ExpectedDevices int   `json:"expectedDevices"`
	ReadAheadKB     int   `json:"readAheadKB"`

	NodeName    string `json:"nodeName"`
	TaintKey    string `json:"taintKey"`
	RemoveTaint bool   `json:"removeTaint"`

	Swappiness           int    `json:"swappiness"`
	MinFreeKbytes        int    `json:"minFreeKbytes"`
	WatermarkScaleFactor int    `json:"watermarkScaleFactor"`
	KubeletConfigPath    string `json:"kubeletConfigPath"`
	Bottlerocket         bool   `json:"bottlerocket"`

	OTLPEndpoint    string `json:"otlpEndpoint"`
	TraceSampleRate int    `json:"traceSampleRate"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		VGName:               "instance-store-vg",
		LVName:               "instance-store-lv",
		FSType:               "xfs",
		MountPath:            "/mnt/instance-store",
		MountOptions:         "noatime,nodiratime",
		MinDeviceSize:        4 << 30,
		ReadAheadKB:          20480,
		Swappiness:           100,
		MinFreeKbytes:        1048576,
		WatermarkScaleFactor: 100,
	}
}

// LoadFile overlays the YAML file at path onto the receiver. Unknown keys
// are an error so typos surface at boot instead of silently using a
// default.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the invariants the provisioner depends on.
func (c *Config) Validate() error {
	switch probe.CloudProvider(c.CloudProvider) {
	case probe.AWS, probe.GCP, probe.Azure, probe.Generic:
	case "":
		return fmt.Errorf("cloud provider is required")
	default:
		return fmt.Errorf("unknown cloud provider %q", c.CloudProvider)
	}

	if c.VGName == "" || c.LVName == "" {
		return fmt.Errorf("volume group and logical volume names are required")
	}
	if c.FSType == "" {
		return fmt.Errorf("filesystem type is required")
	}
	if !filepath.IsAbs(c.MountPath) {
		return fmt.Errorf("mount path %q must be absolute", c.MountPath)
	}
	if c.MinDeviceSize < 0 {
		return fmt.Errorf("minimum device size must not be negative")
	}
	if c.ExpectedDevices < 0 {
		return fmt.Errorf("expected device count must not be negative")
	}
	if c.RemoveTaint && c.NodeName == "" {
		return fmt.Errorf("node name is required to remove the startup taint")
	}
	return nil
}

// MountOptionsList splits the comma-separated mount options.
func (c *Config) MountOptionsList() []string {
	if c.MountOptions == "" {
		return nil
	}
	parts := strings.Split(c.MountOptions, ",")
	options := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			options = append(options, p)
		}
	}
	return options
}
