// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package fsutil probes and creates filesystem signatures on block devices.
package fsutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"k8s.io/utils/exec"
)

const (
	blkidCmd = "blkid"
)

// Interface probes and formats block devices.
type Interface interface {
	// IsBlockDevice reports whether the given path is a block device.
	IsBlockDevice(path string) (bool, error)
	// Signature returns the filesystem signature on a block device, or ""
	// when the device carries no signature.
	Signature(ctx context.Context, device string) (string, error)
	// Format writes a filesystem of the given type onto the device. The
	// device must carry no existing signature.
	Format(ctx context.Context, device, fstype string) error
}

type fsutil struct {
	exec exec.Interface
}

var _ Interface = &fsutil{}

// New returns a new fsutil instance.
func New(exec exec.Interface) Interface {
	return &fsutil{
		exec: exec,
	}
}

// IsBlockDevice reports whether the given path is a block device.
func (f *fsutil) IsBlockDevice(path string) (bool, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat path %s: %w", path, err)
	}

	stat, ok := fileInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("failed to get raw syscall.Stat_t data for %s", path)
	}

	return (stat.Mode & syscall.S_IFMT) == syscall.S_IFBLK, nil
}

// Signature probes the device with blkid low-level probing and returns the
// detected filesystem type.
//
// blkid exit status is:
//   - 0, the device is present and has a filesystem.
//   - 2, device not present or does not have a filesystem.
//   - 4, usage or other errors.
//   - 8, ambivalent probing result was detected by low-level probing mode (-p).
//
// Exit status 2 is the unformatted case and is not an error.
func (f *fsutil) Signature(ctx context.Context, device string) (string, error) {
	if _, err := f.IsBlockDevice(device); err != nil {
		return "", err
	}

	args := []string{"-p", "-s", "TYPE", "-o", "value", device}
	output, err := f.exec.CommandContext(ctx, blkidCmd, args...).CombinedOutput()
	if err != nil {
		if exit, ok := err.(exec.ExitError); ok && exit.ExitStatus() == 2 {
			return "", nil
		}
		return "", fmt.Errorf("could not discover filesystem format for device path (%s): %w", device, err)
	}

	return strings.TrimSpace(string(output)), nil
}

// Format runs mkfs.<fstype> on the device. It refuses to touch a device
// that already carries a signature; the existing filesystem is kept as is.
func (f *fsutil) Format(ctx context.Context, device, fstype string) error {
	sig, err := f.Signature(ctx, device)
	if err != nil {
		return err
	}
	if sig != "" {
		return fmt.Errorf("device %s already has a %s signature", device, sig)
	}

	mkfsCmd := "mkfs." + fstype
	if _, err := f.exec.LookPath(mkfsCmd); err != nil {
		return fmt.Errorf("unable to find %s in PATH: %w", mkfsCmd, err)
	}

	output, err := f.exec.CommandContext(ctx, mkfsCmd, device).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed on %s: %w, output: %s", mkfsCmd, device, err, string(output))
	}
	return nil
}
