// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package version

import (
	"fmt"
	"runtime"
	"testing"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	if info.Version != "N/A" || info.GitCommit != "N/A" {
		t.Errorf("expected unstamped build metadata, got %#v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("unexpected go version: %s", info.GoVersion)
	}
	if info.Platform != fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH) {
		t.Errorf("unexpected platform: %s", info.Platform)
	}
}
