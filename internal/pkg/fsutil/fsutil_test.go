// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package fsutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"k8s.io/utils/exec"
	fakeexec "k8s.io/utils/exec/testing"
)

// fakeDevice creates a plain file standing in for a block device so the
// stat check passes.
func fakeDevice(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nvme1n1")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSignature(t *testing.T) {
	device := fakeDevice(t)

	tests := []struct {
		name    string
		action  fakeexec.FakeAction
		want    string
		wantErr bool
	}{
		{
			name: "formatted device",
			action: func() ([]byte, []byte, error) {
				return []byte("xfs\n"), nil, nil
			},
			want: "xfs",
		},
		{
			name: "unformatted device exits 2",
			action: func() ([]byte, []byte, error) {
				return nil, nil, &fakeexec.FakeExitError{Status: 2}
			},
			want: "",
		},
		{
			name: "probe error",
			action: func() ([]byte, []byte, error) {
				return nil, nil, &fakeexec.FakeExitError{Status: 4}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fcmd := fakeexec.FakeCmd{
				CombinedOutputScript: []fakeexec.FakeAction{tt.action},
			}
			fexec := &fakeexec.FakeExec{
				CommandScript: []fakeexec.FakeCommandAction{
					func(cmd string, args ...string) exec.Cmd {
						return fakeexec.InitFakeCmd(&fcmd, cmd, args...)
					},
				},
			}

			got, err := New(fexec).Signature(context.Background(), device)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Signature() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Signature() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatRefusesExistingSignature(t *testing.T) {
	device := fakeDevice(t)

	fcmd := fakeexec.FakeCmd{
		CombinedOutputScript: []fakeexec.FakeAction{
			func() ([]byte, []byte, error) {
				return []byte("ext4\n"), nil, nil
			},
		},
	}
	fexec := &fakeexec.FakeExec{
		CommandScript: []fakeexec.FakeCommandAction{
			func(cmd string, args ...string) exec.Cmd {
				return fakeexec.InitFakeCmd(&fcmd, cmd, args...)
			},
		},
	}

	if err := New(fexec).Format(context.Background(), device, "xfs"); err == nil {
		t.Fatal("expected format of a formatted device to fail")
	}
}

func TestFormat(t *testing.T) {
	device := fakeDevice(t)

	fcmd := fakeexec.FakeCmd{
		CombinedOutputScript: []fakeexec.FakeAction{
			// blkid probe: unformatted.
			func() ([]byte, []byte, error) {
				return nil, nil, &fakeexec.FakeExitError{Status: 2}
			},
			// mkfs.xfs.
			func() ([]byte, []byte, error) {
				return []byte("meta-data=" + device), nil, nil
			},
		},
	}
	fexec := &fakeexec.FakeExec{
		CommandScript: []fakeexec.FakeCommandAction{
			func(cmd string, args ...string) exec.Cmd {
				return fakeexec.InitFakeCmd(&fcmd, cmd, args...)
			},
			func(cmd string, args ...string) exec.Cmd {
				return fakeexec.InitFakeCmd(&fcmd, cmd, args...)
			},
		},
		LookPathFunc: func(cmd string) (string, error) {
			return "/sbin/" + cmd, nil
		},
	}

	if err := New(fexec).Format(context.Background(), device, "xfs"); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if fcmd.CombinedOutputCalls != 2 {
		t.Errorf("expected 2 exec calls, got %d", fcmd.CombinedOutputCalls)
	}
}
