// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package block

import (
	"reflect"
	"testing"
)

func TestParseLsblkOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    *DeviceList
		wantErr bool
	}{
		{
			name: "root disk with partitions and a raw instance-store disk",
			output: `{
                "blockdevices": [
                    {
                        "name": "nvme0n1",
                        "kname": "nvme0n1",
                        "path": "/dev/nvme0n1",
                        "maj:min": "259:0",
                        "rm": false,
                        "type": "disk",
                        "pttype": "gpt",
                        "model": "Amazon Elastic Block Store",
                        "serial": "vol0abc",
                        "size": 107374182400,
                        "children": [
                            {
                                "name": "nvme0n1p1",
                                "path": "/dev/nvme0n1p1",
                                "type": "part",
                                "fstype": "xfs",
                                "mountpoint": "/",
                                "size": 107373133824
                            }
                        ]
                    },
                    {
                        "name": "nvme1n1",
                        "kname": "nvme1n1",
                        "path": "/dev/nvme1n1",
                        "maj:min": "259:1",
                        "rm": false,
                        "type": "disk",
                        "model": "Amazon EC2 NVMe Instance Storage",
                        "serial": "AWS10382abc",
                        "size": 107374182400
                    }
                ]
            }`,
			want: &DeviceList{
				Devices: []Device{
					{
						Name:   "nvme0n1",
						KName:  "nvme0n1",
						Path:   "/dev/nvme0n1",
						MajMin: "259:0",
						Type:   "disk",
						PTType: "gpt",
						Model:  "Amazon Elastic Block Store",
						Serial: "vol0abc",
						Size:   107374182400,
						Children: []Device{
							{
								Name:       "nvme0n1p1",
								Path:       "/dev/nvme0n1p1",
								Type:       "part",
								FSType:     "xfs",
								Mountpoint: "/",
								Size:       107373133824,
							},
						},
					},
					{
						Name:   "nvme1n1",
						KName:  "nvme1n1",
						Path:   "/dev/nvme1n1",
						MajMin: "259:1",
						Type:   "disk",
						Model:  "Amazon EC2 NVMe Instance Storage",
						Serial: "AWS10382abc",
						Size:   107374182400,
					},
				},
			},
		},
		{
			name:    "invalid json",
			output:  `{"blockdevices": [`,
			wantErr: true,
		},
		{
			name:   "empty device list",
			output: `{"blockdevices": []}`,
			want:   &DeviceList{Devices: []Device{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLsblkOutput([]byte(tt.output))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLsblkOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseLsblkOutput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStableID(t *testing.T) {
	tests := []struct {
		name   string
		device Device
		want   string
	}{
		{
			name:   "serial preferred",
			device: Device{Path: "/dev/nvme1n1", Serial: "AWS111", WWN: "nvme.1d0f-111"},
			want:   "AWS111",
		},
		{
			name:   "wwn when no serial",
			device: Device{Path: "/dev/nvme1n1", WWN: "nvme.1d0f-111"},
			want:   "nvme.1d0f-111",
		},
		{
			name:   "path as last resort",
			device: Device{Path: "/dev/nvme1n1", Serial: "  "},
			want:   "/dev/nvme1n1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.StableID(); got != tt.want {
				t.Errorf("StableID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasMountpoint(t *testing.T) {
	root := Device{
		Name: "nvme0n1",
		Children: []Device{
			{Name: "nvme0n1p1", Mountpoint: "/boot"},
			{Name: "nvme0n1p2", Mountpoints: []string{"/"}},
		},
	}
	if !root.HasMountpoint("/") {
		t.Error("expected root mount to be found in descendant")
	}
	if root.HasMountpoint("/mnt/data") {
		t.Error("unexpected mountpoint match")
	}
}
