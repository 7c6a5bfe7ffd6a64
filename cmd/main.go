// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2/textlogger"
	mountutils "k8s.io/mount-utils"
	"k8s.io/utils/exec"

	"ephemeral-storage-setup/internal/kubeclient"
	"ephemeral-storage-setup/internal/pkg/block"
	"ephemeral-storage-setup/internal/pkg/config"
	"ephemeral-storage-setup/internal/pkg/fsutil"
	lvmMgr "ephemeral-storage-setup/internal/pkg/lvm"
	"ephemeral-storage-setup/internal/pkg/mount"
	"ephemeral-storage-setup/internal/pkg/probe"
	"ephemeral-storage-setup/internal/pkg/sysfs"
	"ephemeral-storage-setup/internal/pkg/telemetry"
	"ephemeral-storage-setup/internal/pkg/version"
	"ephemeral-storage-setup/internal/provision"
	"ephemeral-storage-setup/internal/swap"
)

const (
	// ServiceName is the name of the service used in traces.
	ServiceName = "ephemeral-storage-setup"

	// terminationMessagePath is the path to the termination message file
	// for the Kubernetes pod. This file is used to store the last error
	// message.
	terminationMessagePath = "/tmp/termination-log"

	// userDataPath is where Bottlerocket mounts the bootstrap-container
	// user data. When the binary is started with no arguments it reads its
	// argument vector from this file, a JSON array of strings.
	userDataPath = "/.bottlerocket/bootstrap-containers/current/user-data"
)

// Exit codes. Init systems and pod controllers branch on these, so each
// failure class gets its own value.
const (
	exitOK          = 0
	exitUsage       = 1
	exitDiscovery   = 2
	exitForeign     = 3
	exitDegraded    = 4
	exitToolFailure = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		var err error
		if args, err = userDataArgs(userDataPath); err != nil {
			usage()
			return exitUsage
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "lvm":
		return runLVM(ctx, args[1:])
	case "swap":
		return runSwap(ctx, args[1:])
	case "sleep":
		<-ctx.Done()
		return exitOK
	default:
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <lvm|swap|sleep> [flags]\n", ServiceName)
}

// userDataArgs reads the argument vector from the Bottlerocket user-data
// file, a JSON array such as ["lvm", "--cloud-provider=aws"].
func userDataArgs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var args []string
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("failed to parse user data %s: %w", path, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("user data %s holds no arguments", path)
	}
	return args, nil
}

// loadConfig resolves the configuration for a subcommand with precedence
// defaults < config file < environment < flags.
func loadConfig(name string, args []string) (*config.Config, logr.Logger, error) {
	cfg := config.Default()

	if path := configPathFromArgs(args); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, logr.Discard(), err
		}
	}
	applyEnv(&cfg)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file, applied before flags.")
	fs.StringVar(&cfg.CloudProvider, "cloud-provider", cfg.CloudProvider,
		"Cloud provider whose instance-store disks to detect: aws, gcp, azure or generic.")
	fs.StringVar(&cfg.VGName, "vg-name", cfg.VGName, "Name of the volume group to converge to.")
	fs.StringVar(&cfg.LVName, "lv-name", cfg.LVName, "Name of the logical volume to converge to.")
	fs.StringVar(&cfg.FSType, "fs-type", cfg.FSType, "Filesystem to create on the logical volume.")
	fs.StringVar(&cfg.MountPath, "mount-path", cfg.MountPath, "Where to mount the logical volume.")
	fs.StringVar(&cfg.MountOptions, "mount-options", cfg.MountOptions, "Comma-separated mount options.")
	fs.IntVar(&cfg.MountUID, "mount-uid", cfg.MountUID, "Owner uid for the mount point.")
	fs.IntVar(&cfg.MountGID, "mount-gid", cfg.MountGID, "Owner gid for the mount point.")
	fs.Int64Var(&cfg.MinDeviceSize, "min-device-size", cfg.MinDeviceSize,
		"Smallest device size in bytes considered an instance-store disk.")
	fs.IntVar(&cfg.ExpectedDevices, "expected-devices", cfg.ExpectedDevices,
		"Exact number of devices expected, or 0 to take whatever is present.")
	fs.IntVar(&cfg.ReadAheadKB, "read-ahead-kb", cfg.ReadAheadKB,
		"read_ahead_kb to set on each device, or 0 to leave it alone.")
	fs.StringVar(&cfg.NodeName, "node-name", cfg.NodeName, "The name of the node this binary is running on.")
	fs.StringVar(&cfg.TaintKey, "taint-key", cfg.TaintKey,
		"Taint key to remove after convergence. Defaults to the cluster-autoscaler startup taint.")
	fs.BoolVar(&cfg.RemoveTaint, "remove-taint", cfg.RemoveTaint,
		"Remove the startup taint from the node after convergence.")
	fs.IntVar(&cfg.Swappiness, "swappiness", cfg.Swappiness, "vm.swappiness to set, or 0 to leave it alone.")
	fs.IntVar(&cfg.MinFreeKbytes, "min-free-kbytes", cfg.MinFreeKbytes,
		"vm.min_free_kbytes to set, or 0 to leave it alone.")
	fs.IntVar(&cfg.WatermarkScaleFactor, "watermark-scale-factor", cfg.WatermarkScaleFactor,
		"vm.watermark_scale_factor to set, or 0 to leave it alone.")
	fs.StringVar(&cfg.KubeletConfigPath, "kubelet-config-path", cfg.KubeletConfigPath,
		"Kubelet config file to rewrite with swap enabled. Empty to skip.")
	fs.BoolVar(&cfg.Bottlerocket, "bottlerocket", cfg.Bottlerocket,
		"Enable kubelet swap through the Bottlerocket API instead of editing the kubelet config.")
	fs.StringVar(&cfg.OTLPEndpoint, "trace-address", cfg.OTLPEndpoint,
		"The address to send traces to. Disables tracing if not set.")
	fs.IntVar(&cfg.TraceSampleRate, "trace-sample-rate", cfg.TraceSampleRate,
		"Sample rate per million. 0 to disable tracing, 1000000 to trace everything.")

	logConfig := textlogger.NewConfig(textlogger.VerbosityFlagName("v"))
	logConfig.AddFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, logr.Discard(), err
	}
	return &cfg, textlogger.NewLogger(logConfig), nil
}

func configPathFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--config" || arg == "-config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-config="):
			return strings.TrimPrefix(arg, "-config=")
		}
	}
	return ""
}

func applyEnv(cfg *config.Config) {
	envString(&cfg.CloudProvider, "CLOUD_PROVIDER")
	envString(&cfg.VGName, "VG_NAME")
	envString(&cfg.LVName, "LV_NAME")
	envString(&cfg.FSType, "FS_TYPE")
	envString(&cfg.MountPath, "MOUNT_PATH")
	envString(&cfg.MountOptions, "MOUNT_OPTIONS")
	envString(&cfg.NodeName, "NODE_NAME")
	envString(&cfg.TaintKey, "TAINT_KEY")
	envString(&cfg.KubeletConfigPath, "KUBELET_CONFIG_PATH")
	envString(&cfg.OTLPEndpoint, "OTLP_ENDPOINT")
	envInt(&cfg.ExpectedDevices, "EXPECTED_DEVICES")
	envInt(&cfg.ReadAheadKB, "READ_AHEAD_KB")
	envBool(&cfg.RemoveTaint, "REMOVE_TAINT")
	envBool(&cfg.Bottlerocket, "BOTTLEROCKET")
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func runLVM(ctx context.Context, args []string) int {
	cfg, log, err := loadConfig("lvm", args)
	if err != nil {
		return exitUsage
	}
	version.Log(log)

	if err := cfg.Validate(); err != nil {
		logError(log, err, "invalid configuration")
		return exitUsage
	}

	t, err := telemetry.New(ctx,
		telemetry.WithServiceInstanceID(cfg.NodeName),
		telemetry.WithEndpoint(cfg.OTLPEndpoint),
		telemetry.WithTraceSampleRate(cfg.TraceSampleRate),
	)
	if err != nil {
		logError(log, err, "failed to initialize telemetry")
		return exitToolFailure
	}
	defer func() {
		if err := t.Shutdown(context.Background()); err != nil {
			log.Error(err, "failed to shut down telemetry")
		}
	}()
	tp := t.TraceProvider()

	lvmClient := lvmMgr.NewClient(lvmMgr.WithTracerProvider(tp))
	if !lvmClient.IsSupported() {
		logError(log, fmt.Errorf("lvm2 tools are not available"), "lvm is not supported on this node")
		return exitToolFailure
	}

	execer := exec.New()
	scanner := probe.New(
		block.New(execer),
		probe.ProviderFilter(probe.CloudProvider(cfg.CloudProvider), cfg.MinDeviceSize, block.LVMMemberSignature),
		log,
	)
	mounter := mountutils.New("")
	inspector := provision.NewInspector(lvmClient, fsutil.New(execer), mounter, log)
	executor := provision.NewExecutor(lvmClient, fsutil.New(execer), mount.New(mounter, log), log)

	topo := provision.Topology{
		VGName:          cfg.VGName,
		LVName:          cfg.LVName,
		FSType:          cfg.FSType,
		MountPath:       cfg.MountPath,
		MountOptions:    cfg.MountOptionsList(),
		MountUID:        cfg.MountUID,
		MountGID:        cfg.MountGID,
		ExpectedDevices: cfg.ExpectedDevices,
	}

	provisioner := provision.New(topo, scanner, inspector, executor, log,
		provision.WithReadAhead(sysfs.New(), cfg.ReadAheadKB),
		provision.WithTracerProvider(tp),
	)
	if err := provisioner.Run(ctx); err != nil {
		logError(log, err, "provisioning failed")
		return exitCode(err)
	}

	if cfg.RemoveTaint {
		if err := removeStartupTaint(ctx, cfg, log); err != nil {
			logError(log, err, "failed to remove startup taint")
			return exitToolFailure
		}
	}
	return exitOK
}

func runSwap(ctx context.Context, args []string) int {
	cfg, log, err := loadConfig("swap", args)
	if err != nil {
		return exitUsage
	}
	version.Log(log)

	if err := cfg.Validate(); err != nil {
		logError(log, err, "invalid configuration")
		return exitUsage
	}

	execer := exec.New()
	scanner := probe.New(
		block.New(execer),
		probe.ProviderFilter(probe.CloudProvider(cfg.CloudProvider), cfg.MinDeviceSize, block.SwapSignature),
		log,
	)
	devices, err := scanner.ScanEligibleDevices(ctx)
	if err != nil {
		logError(log, err, "device discovery failed")
		return exitDiscovery
	}

	controller := swap.New(execer, log, swap.WithReadAhead(sysfs.New(), cfg.ReadAheadKB))
	err = controller.Run(ctx, devices, swap.Config{
		CloudProvider:        probe.CloudProvider(cfg.CloudProvider),
		Swappiness:           cfg.Swappiness,
		MinFreeKbytes:        cfg.MinFreeKbytes,
		WatermarkScaleFactor: cfg.WatermarkScaleFactor,
		KubeletConfigPath:    cfg.KubeletConfigPath,
		UseBottlerocketAPI:   cfg.Bottlerocket,
	})
	if err != nil {
		logError(log, err, "swap setup failed")
		return exitToolFailure
	}

	if cfg.RemoveTaint {
		if err := removeStartupTaint(ctx, cfg, log); err != nil {
			logError(log, err, "failed to remove startup taint")
			return exitToolFailure
		}
	}
	return exitOK
}

func removeStartupTaint(ctx context.Context, cfg *config.Config, log logr.Logger) error {
	client, err := kubeclient.New(log)
	if err != nil {
		return err
	}
	taintKey := cfg.TaintKey
	if taintKey == "" {
		taintKey = kubeclient.DefaultStartupTaintKey
	}
	return client.RemoveNodeTaint(ctx, cfg.NodeName, taintKey)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, provision.ErrNoEligibleDevices):
		return exitDiscovery
	case errors.Is(err, provision.ErrForeignState):
		return exitForeign
	case errors.Is(err, provision.ErrDegradedMembership):
		return exitDegraded
	default:
		return exitToolFailure
	}
}

// logError logs the error and writes it to the termination message file,
// which Kubernetes surfaces as the pod's last state.
func logError(log logr.Logger, err error, msg string) {
	log.Error(err, msg)
	errMsg := fmt.Sprintf("%s: %v", msg, err)
	parentDir := filepath.Dir(terminationMessagePath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		log.Error(err, "failed to create directory for termination message")
		return
	}
	if err := os.WriteFile(terminationMessagePath, []byte(errMsg), 0600); err != nil {
		log.Error(err, "failed to write termination message")
	}
}
