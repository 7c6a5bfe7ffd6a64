// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package mount converges a block device onto its target mount path.
package mount

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	mountutils "k8s.io/mount-utils"
)

// Interface ensures a device is mounted at a target path.
type Interface interface {
	// EnsureMounted mounts the device at target unless it is already
	// mounted there. devicePaths lists the acceptable identities of the
	// device in the mount table (e.g. the LV path and its device-mapper
	// path). Returns true when a mount was performed.
	EnsureMounted(ctx context.Context, devicePaths []string, target, fstype string, options []string) (bool, error)
	// SetOwnership applies uid/gid and mode to the mount point. Negative
	// uid/gid leave ownership unchanged.
	SetOwnership(target string, uid, gid int, mode os.FileMode) error
}

type manager struct {
	mounter mountutils.Interface
	log     logr.Logger
}

var _ Interface = &manager{}

// New returns a mount manager backed by the given mounter.
func New(mounter mountutils.Interface, log logr.Logger) Interface {
	return &manager{
		mounter: mounter,
		log:     log,
	}
}

// EnsureMounted checks the mount table before touching anything. A target
// already claimed by a different device is a hard error, never remounted
// over.
func (m *manager) EnsureMounted(ctx context.Context, devicePaths []string, target, fstype string, options []string) (bool, error) {
	if len(devicePaths) == 0 {
		return false, fmt.Errorf("no device paths given for target %s", target)
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return false, fmt.Errorf("failed to create mount path %s: %w", target, err)
	}

	isMountPoint, err := m.mounter.IsMountPoint(target)
	if err != nil {
		return false, fmt.Errorf("failed to check mount point %s: %w", target, err)
	}

	if isMountPoint {
		mountedDevice, _, err := mountutils.GetDeviceNameFromMount(m.mounter, target)
		if err != nil {
			return false, fmt.Errorf("failed to resolve device mounted at %s: %w", target, err)
		}
		for _, devicePath := range devicePaths {
			if mountedDevice == devicePath {
				m.log.V(1).Info("device already mounted", "device", mountedDevice, "target", target)
				return false, nil
			}
		}
		return false, fmt.Errorf("mount path %s is claimed by %s, expected one of %v", target, mountedDevice, devicePaths)
	}

	device := devicePaths[0]
	if err := m.mounter.MountSensitiveWithoutSystemd(device, target, fstype, options, nil); err != nil {
		return false, fmt.Errorf("failed to mount %s at %s: %w", device, target, err)
	}
	m.log.Info("mounted device", "device", device, "target", target, "fstype", fstype, "options", options)
	return true, nil
}

// SetOwnership applies ownership and permissions to the mount point.
func (m *manager) SetOwnership(target string, uid, gid int, mode os.FileMode) error {
	if uid >= 0 || gid >= 0 {
		if err := os.Chown(target, uid, gid); err != nil {
			return fmt.Errorf("failed to chown %s: %w", target, err)
		}
	}
	if mode != 0 {
		if err := os.Chmod(target, mode); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", target, err)
		}
	}
	return nil
}

// MapperPath returns the /dev/mapper path for a VG/LV pair, applying the
// device-mapper escaping rule that doubles dashes in names.
func MapperPath(vgName, lvName string) string {
	escape := func(s string) string {
		out := make([]byte, 0, len(s))
		for i := 0; i < len(s); i++ {
			if s[i] == '-' {
				out = append(out, '-', '-')
			} else {
				out = append(out, s[i])
			}
		}
		return string(out)
	}
	return "/dev/mapper/" + escape(vgName) + "-" + escape(lvName)
}
