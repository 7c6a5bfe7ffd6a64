// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package swap turns the eligible ephemeral disks into swap devices and
// wires the surrounding knobs: VM sysctls, the Bottlerocket API and the
// kubelet swap configuration.
package swap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	utilexec "k8s.io/utils/exec"
	"sigs.k8s.io/yaml"

	"ephemeral-storage-setup/internal/pkg/block"
	"ephemeral-storage-setup/internal/pkg/probe"
	"ephemeral-storage-setup/internal/pkg/sysfs"
)

// swapon priority for every device. Equal priorities make the kernel
// round-robin pages across the disks, striping the swap load.
const swapPriority = "10"

// Config controls the optional follow-up work after the devices are
// enabled. Zero values disable the corresponding knob.
type Config struct {
	// CloudProvider selects provider-specific kubelet handling; Azure
	// needs a systemd drop-in before the kubelet picks up its config
	// file.
	CloudProvider probe.CloudProvider

	// Swappiness, MinFreeKbytes and WatermarkScaleFactor are written to
	// /proc/sys/vm when positive.
	Swappiness           int
	MinFreeKbytes        int
	WatermarkScaleFactor int

	// KubeletConfigPath, when set, is a kubelet config YAML to rewrite
	// with swap enabled, followed by a kubelet restart through the host
	// mount. A missing file is created from scratch.
	KubeletConfigPath string

	// UseBottlerocketAPI enables swap through the Bottlerocket apiclient
	// instead of editing the kubelet config directly.
	UseBottlerocketAPI bool
}

// azureKubeletDropInPath is where the systemd drop-in pointing the kubelet
// at its config file is written, relative to the host mount. Azure does not
// set KUBELET_CONFIG_FILE_FLAGS by default, so without this the rewritten
// config is never read.
const azureKubeletDropInPath = "etc/systemd/system/kubelet.service.d/99-enable-swap.conf"

const azureKubeletDropIn = `[Service]
Environment="KUBELET_CONFIG_FILE_FLAGS=--config /var/lib/kubelet/config.yaml"`

// Controller enables swap on block devices.
type Controller struct {
	exec        utilexec.Interface
	procRoot    string
	hostRoot    string
	sysfs       sysfs.Interface
	readAheadKB int
	log         logr.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithProcRoot overrides /proc, for tests.
func WithProcRoot(root string) Option {
	return func(c *Controller) {
		c.procRoot = root
	}
}

// WithHostRoot overrides the host mount used to restart the kubelet.
func WithHostRoot(root string) Option {
	return func(c *Controller) {
		c.hostRoot = root
	}
}

// WithReadAhead enables read-ahead tuning of each device before it is
// turned into swap. Failure to tune is logged, never fatal.
func WithReadAhead(s sysfs.Interface, kb int) Option {
	return func(c *Controller) {
		c.sysfs = s
		c.readAheadKB = kb
	}
}

// New returns a swap controller.
func New(exec utilexec.Interface, log logr.Logger, opts ...Option) *Controller {
	c := &Controller{
		exec:     exec,
		procRoot: "/proc",
		hostRoot: "/host",
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run enables swap on every device not already swapping, then applies the
// configured sysctls and kubelet settings. Rerunning is safe: active swap
// devices are skipped and the remaining writes are absolute values.
func (c *Controller) Run(ctx context.Context, devices []block.Device, cfg Config) error {
	if c.sysfs != nil && c.readAheadKB > 0 {
		for _, device := range devices {
			if err := c.sysfs.SetReadAheadKB(device.KName, c.readAheadKB); err != nil {
				c.log.Error(err, "failed to tune read-ahead, continuing", "device", device.Path)
			}
		}
	}

	enabled, err := c.EnableDevices(ctx, devices)
	if err != nil {
		return err
	}
	c.log.Info("swap devices enabled", "new", enabled, "total", len(devices))

	if err := c.ApplySysctls(cfg); err != nil {
		return err
	}

	if cfg.UseBottlerocketAPI {
		if err := c.EnableBottlerocketSwap(ctx); err != nil {
			return err
		}
	} else if cfg.KubeletConfigPath != "" {
		if err := c.EnableKubeletSwap(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

// EnableDevices runs mkswap and swapon for each device not already listed
// in /proc/swaps. It returns the number of devices newly enabled.
func (c *Controller) EnableDevices(ctx context.Context, devices []block.Device) (int, error) {
	active, err := c.activeSwapDevices()
	if err != nil {
		return 0, err
	}

	enabled := 0
	for _, device := range devices {
		if isActiveSwap(device.Path, active) {
			c.log.V(1).Info("device already swapping", "device", device.Path)
			continue
		}

		if out, err := c.exec.CommandContext(ctx, "mkswap", device.Path).CombinedOutput(); err != nil {
			return enabled, fmt.Errorf("mkswap %s failed: %w: %s", device.Path, err, strings.TrimSpace(string(out)))
		}
		if out, err := c.exec.CommandContext(ctx, "swapon", "-p", swapPriority, device.Path).CombinedOutput(); err != nil {
			return enabled, fmt.Errorf("swapon %s failed: %w: %s", device.Path, err, strings.TrimSpace(string(out)))
		}
		c.log.Info("enabled swap device", "device", device.Path, "priority", swapPriority)
		enabled++
	}
	return enabled, nil
}

// activeSwapDevices parses /proc/swaps into the device paths currently
// swapping, as the kernel reports them.
func (c *Controller) activeSwapDevices() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(c.procRoot, "swaps"))
	if err != nil {
		return nil, fmt.Errorf("failed to read swap table: %w", err)
	}

	var active []string
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if i == 0 {
			// header
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		active = append(active, fields[0])
	}
	return active, nil
}

// isActiveSwap matches a device path against the swap table entries by
// suffix, since /proc/swaps sometimes reports paths without the leading
// /dev (e.g. /nvme1n1 for /dev/nvme1n1).
func isActiveSwap(devicePath string, active []string) bool {
	for _, entry := range active {
		if strings.HasSuffix(devicePath, entry) {
			return true
		}
	}
	return false
}

// ApplySysctls writes the configured VM tunables. Values of zero or below
// are left untouched.
func (c *Controller) ApplySysctls(cfg Config) error {
	sysctls := []struct {
		name  string
		value int
	}{
		{"swappiness", cfg.Swappiness},
		{"min_free_kbytes", cfg.MinFreeKbytes},
		{"watermark_scale_factor", cfg.WatermarkScaleFactor},
	}
	for _, s := range sysctls {
		if s.value <= 0 {
			continue
		}
		path := filepath.Join(c.procRoot, "sys", "vm", s.name)
		if err := os.WriteFile(path, []byte(strconv.Itoa(s.value)), 0o644); err != nil {
			return fmt.Errorf("failed to set vm.%s: %w", s.name, err)
		}
		c.log.V(1).Info("applied sysctl", "name", "vm."+s.name, "value", s.value)
	}
	return nil
}

// EnableBottlerocketSwap flips the kubelet swap behavior through the
// Bottlerocket API. The OS regenerates and restarts the kubelet itself.
func (c *Controller) EnableBottlerocketSwap(ctx context.Context) error {
	out, err := c.exec.CommandContext(ctx, "apiclient", "set",
		"settings.kubernetes.memory-swap-behavior=LimitedSwap").CombinedOutput()
	if err != nil {
		return fmt.Errorf("apiclient set failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	c.log.Info("enabled kubelet swap via bottlerocket api")
	return nil
}

// EnableKubeletSwap rewrites the kubelet config on the host to tolerate and
// use swap, then restarts the kubelet through the host mount. A missing
// config file is created from scratch.
func (c *Controller) EnableKubeletSwap(ctx context.Context, cfg Config) error {
	var config map[string]any
	data, err := os.ReadFile(cfg.KubeletConfigPath)
	switch {
	case os.IsNotExist(err):
		config = make(map[string]any)
	case err != nil:
		return fmt.Errorf("failed to read kubelet config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("failed to parse kubelet config: %w", err)
		}
		if config == nil {
			config = make(map[string]any)
		}
	}

	if _, ok := config["kind"]; !ok {
		config["kind"] = "KubeletConfiguration"
	}
	if _, ok := config["apiVersion"]; !ok {
		config["apiVersion"] = "kubelet.config.k8s.io/v1beta1"
	}
	config["failSwapOn"] = false
	memorySwap, _ := config["memorySwap"].(map[string]any)
	if memorySwap == nil {
		memorySwap = make(map[string]any)
	}
	memorySwap["swapBehavior"] = "LimitedSwap"
	config["memorySwap"] = memorySwap

	updated, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize kubelet config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.KubeletConfigPath), 0o755); err != nil {
		return fmt.Errorf("failed to create kubelet config directory: %w", err)
	}
	if err := os.WriteFile(cfg.KubeletConfigPath, updated, 0o644); err != nil {
		return fmt.Errorf("failed to write kubelet config: %w", err)
	}

	if cfg.CloudProvider == probe.Azure {
		dropIn := filepath.Join(c.hostRoot, azureKubeletDropInPath)
		if err := os.MkdirAll(filepath.Dir(dropIn), 0o755); err != nil {
			return fmt.Errorf("failed to create kubelet drop-in directory: %w", err)
		}
		if err := os.WriteFile(dropIn, []byte(azureKubeletDropIn+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write kubelet drop-in: %w", err)
		}
		c.log.Info("wrote kubelet swap drop-in", "path", dropIn)
	}

	if out, err := c.exec.CommandContext(ctx, "chroot", c.hostRoot,
		"systemctl", "daemon-reload").CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl daemon-reload failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	out, err := c.exec.CommandContext(ctx, "chroot", c.hostRoot,
		"systemctl", "restart", "kubelet.service").CombinedOutput()
	if err != nil {
		return fmt.Errorf("kubelet restart failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	c.log.Info("enabled kubelet swap", "config", cfg.KubeletConfigPath)
	return nil
}
