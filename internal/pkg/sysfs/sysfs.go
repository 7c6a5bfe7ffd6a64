// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package sysfs tunes block device queue parameters through /sys.
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Interface adjusts kernel block queue settings.
type Interface interface {
	// SetReadAheadKB sets the read-ahead window for a device-mapper or
	// block device identified by its kernel name (e.g. dm-0, nvme1n1).
	SetReadAheadKB(kname string, kb int) error
}

type sysfs struct {
	root string
}

var _ Interface = &sysfs{}

// New returns a sysfs writer rooted at /sys.
func New() Interface {
	return &sysfs{root: "/sys"}
}

// NewWithRoot returns a sysfs writer rooted at the given directory. Used in
// tests.
func NewWithRoot(root string) Interface {
	return &sysfs{root: root}
}

func (s *sysfs) SetReadAheadKB(kname string, kb int) error {
	if kname == "" {
		return fmt.Errorf("device kernel name cannot be empty")
	}
	path := filepath.Join(s.root, "block", kname, "queue", "read_ahead_kb")
	if err := os.WriteFile(path, []byte(strconv.Itoa(kb)), 0o644); err != nil {
		return fmt.Errorf("failed to set read_ahead_kb for %s: %w", kname, err)
	}
	return nil
}
