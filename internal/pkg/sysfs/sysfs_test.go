// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package sysfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetReadAheadKB(t *testing.T) {
	root := t.TempDir()
	queueDir := filepath.Join(root, "block", "dm-0", "queue")
	if err := os.MkdirAll(queueDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(queueDir, "read_ahead_kb"), []byte("128"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := NewWithRoot(root).SetReadAheadKB("dm-0", 20480); err != nil {
		t.Fatalf("SetReadAheadKB() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(queueDir, "read_ahead_kb"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "20480" {
		t.Errorf("read_ahead_kb = %q, want %q", got, "20480")
	}
}

func TestSetReadAheadKBMissingDevice(t *testing.T) {
	if err := NewWithRoot(t.TempDir()).SetReadAheadKB("dm-9", 20480); err == nil {
		t.Fatal("expected an error for a missing device")
	}
}
