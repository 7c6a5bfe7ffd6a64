// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package block enumerates the host's block devices with lsblk.
package block

import (
	"context"
	"encoding/json"
	"fmt"

	utilexec "k8s.io/utils/exec"
)

const (
	// lsblkCommand is the command to list block devices.
	lsblkCommand = "lsblk"
)

// lsblkColumns are the output columns requested from lsblk. Sizes are
// requested in bytes so no unit parsing is needed.
var lsblkColumns = "NAME,KNAME,PATH,MAJ:MIN,RM,RO,TYPE,MOUNTPOINT,MOUNTPOINTS,FSTYPE,PTTYPE,MODEL,SERIAL,WWN,TRAN,SIZE"

// Interface defines the methods that block should implement.
type Interface interface {
	GetDevices(ctx context.Context) (*DeviceList, error)
}

// block implements the Interface.
type block struct {
	exec utilexec.Interface
}

var _ Interface = &block{}

// New returns a new block instance.
func New(exec utilexec.Interface) Interface {
	return &block{
		exec: exec,
	}
}

// GetDevices runs the lsblk --json command and parses the output.
func (l *block) GetDevices(ctx context.Context) (*DeviceList, error) {
	_, err := l.exec.LookPath(lsblkCommand)
	if err != nil {
		return nil, fmt.Errorf("unable to find %s in PATH: %w", lsblkCommand, err)
	}

	cmd := l.exec.CommandContext(ctx, lsblkCommand, "--bytes", "--json", "--output", lsblkColumns)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("command failed: %w, output: %s", err, string(output))
	}

	return parseLsblkOutput(output)
}

// parseLsblkOutput parses the JSON output of the lsblk command.
func parseLsblkOutput(output []byte) (*DeviceList, error) {
	var lsblkOutput DeviceList
	err := json.Unmarshal(output, &lsblkOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lsblk output: %w", err)
	}
	return &lsblkOutput, nil
}
