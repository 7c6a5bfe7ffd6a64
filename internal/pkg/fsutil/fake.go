// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package fsutil

import (
	"context"
	"fmt"
)

// Fake is an in-memory Interface used in tests.
type Fake struct {
	// Signatures maps device path to its filesystem signature.
	Signatures map[string]string
	// Formatted records the devices formatted, in order.
	Formatted []string
	Err       error
}

var _ Interface = &Fake{}

func NewFake() *Fake {
	return &Fake{
		Signatures: make(map[string]string),
	}
}

func (f *Fake) IsBlockDevice(path string) (bool, error) {
	return true, f.Err
}

func (f *Fake) Signature(_ context.Context, device string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Signatures[device], nil
}

func (f *Fake) Format(_ context.Context, device, fstype string) error {
	if f.Err != nil {
		return f.Err
	}
	if sig := f.Signatures[device]; sig != "" {
		return fmt.Errorf("device %s already has a %s signature", device, sig)
	}
	f.Signatures[device] = fstype
	f.Formatted = append(f.Formatted, device)
	return nil
}
