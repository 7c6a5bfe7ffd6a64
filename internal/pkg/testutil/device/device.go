// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package device creates loopback block devices for root-only integration
// tests.
package device

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CreateLoopDevice backs a new loopback device with a sparse temporary
// file of the given size. It returns the device path and a cleanup
// function detaching the device and removing the file.
func CreateLoopDevice(size int64) (string, func(), error) {
	img, err := os.CreateTemp("", "loopback")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create backing file: %w", err)
	}
	img.Close()

	if err := os.Truncate(img.Name(), size); err != nil {
		os.Remove(img.Name())
		return "", nil, fmt.Errorf("failed to size backing file: %w", err)
	}

	out, err := exec.Command("losetup", "--find", "--show", img.Name()).CombinedOutput()
	if err != nil {
		os.Remove(img.Name())
		return "", nil, fmt.Errorf("losetup failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	dev := strings.TrimSpace(string(out))

	cleanup := func() {
		if out, err := exec.Command("losetup", "--detach", dev).CombinedOutput(); err != nil {
			fmt.Printf("failed to detach %s: %v: %s\n", dev, err, out)
		}
		if err := os.Remove(img.Name()); err != nil {
			fmt.Printf("failed to remove backing file: %v\n", err)
		}
	}
	return dev, cleanup, nil
}
