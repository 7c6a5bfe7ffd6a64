// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"context"
	"fmt"
	"strings"
)

// Fake is an in-memory Manager used in tests. It keeps PV/VG membership
// consistent: vgcreate and vgextend stamp the owning VG onto the member PVs
// and maintain the VG's PV count.
type Fake struct {
	PVs map[string]PhysicalVolume
	VGs map[string]VolumeGroup
	LVs map[string]LogicalVolume

	// Calls records the mutating operations in order, e.g. "pvcreate /dev/nvme1n1".
	Calls []string

	Err error
}

var _ Manager = &Fake{}

// Construct a new fake lvm2 client.
func NewFake() *Fake {
	return &Fake{
		PVs: make(map[string]PhysicalVolume),
		VGs: make(map[string]VolumeGroup),
		LVs: make(map[string]LogicalVolume),
	}
}

// IsSupported returns true if LVM is supported on the current node.
func (f *Fake) IsSupported() bool {
	return true
}

// CreatePhysicalVolume creates a PV on a block device.
func (f *Fake) CreatePhysicalVolume(ctx context.Context, opts CreatePVOptions) error {
	if f.Err != nil {
		return f.Err
	}
	if _, ok := f.PVs[opts.Name]; ok {
		return ErrAlreadyExists
	}
	f.PVs[opts.Name] = PhysicalVolume{
		Name:   opts.Name,
		Format: SupportedFormat,
	}
	f.Calls = append(f.Calls, "pvcreate "+opts.Name)
	return nil
}

// ListPhysicalVolumes returns the list of PVs, optionally filtered by name.
func (f *Fake) ListPhysicalVolumes(ctx context.Context, opts *ListPVOptions) ([]PhysicalVolume, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	var pvs []PhysicalVolume
	for _, pv := range f.PVs {
		if opts != nil && len(opts.Names) > 0 && !contains(opts.Names, pv.Name) {
			continue
		}
		pvs = append(pvs, pv)
	}
	return pvs, nil
}

// GetPhysicalVolume returns the named PV.
func (f *Fake) GetPhysicalVolume(ctx context.Context, pvName string) (*PhysicalVolume, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	pv, ok := f.PVs[pvName]
	if !ok {
		return nil, ErrNotFound
	}
	return &pv, nil
}

// CreateVolumeGroup creates a VG on the PVs.
func (f *Fake) CreateVolumeGroup(ctx context.Context, opts CreateVGOptions) error {
	if f.Err != nil {
		return f.Err
	}
	if _, ok := f.VGs[opts.Name]; ok {
		return ErrAlreadyExists
	}
	for _, pvName := range opts.PVNames {
		pv, ok := f.PVs[pvName]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, pvName)
		}
		if pv.VGName != "" {
			return fmt.Errorf("%w: %s", ErrPVAlreadyInVolumeGroup, pvName)
		}
		pv.VGName = opts.Name
		pv.InUse = true
		f.PVs[pvName] = pv
	}
	f.VGs[opts.Name] = VolumeGroup{
		Name:       opts.Name,
		Format:     SupportedFormat,
		Extendable: true,
		PVCount:    IntString(len(opts.PVNames)),
	}
	f.Calls = append(f.Calls, "vgcreate "+opts.Name+" "+strings.Join(opts.PVNames, " "))
	return nil
}

// ExtendVolumeGroup adds PVs to an existing VG.
func (f *Fake) ExtendVolumeGroup(ctx context.Context, opts ExtendVGOptions) error {
	if f.Err != nil {
		return f.Err
	}
	vg, ok := f.VGs[opts.Name]
	if !ok {
		return ErrNotFound
	}
	for _, pvName := range opts.PVNames {
		pv, ok := f.PVs[pvName]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, pvName)
		}
		if pv.VGName != "" {
			return fmt.Errorf("%w: %s", ErrPVAlreadyInVolumeGroup, pvName)
		}
		pv.VGName = opts.Name
		pv.InUse = true
		f.PVs[pvName] = pv
	}
	vg.PVCount += IntString(len(opts.PVNames))
	f.VGs[opts.Name] = vg
	f.Calls = append(f.Calls, "vgextend "+opts.Name+" "+strings.Join(opts.PVNames, " "))
	return nil
}

// ListVolumeGroups lists the specified VGs.
func (f *Fake) ListVolumeGroups(ctx context.Context, opts *ListVGOptions) ([]VolumeGroup, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	var vgs []VolumeGroup
	for _, vg := range f.VGs {
		if opts != nil && len(opts.Names) > 0 && !contains(opts.Names, vg.Name) {
			continue
		}
		vgs = append(vgs, vg)
	}
	return vgs, nil
}

// GetVolumeGroup returns the named VG.
func (f *Fake) GetVolumeGroup(ctx context.Context, vgName string) (*VolumeGroup, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	vg, ok := f.VGs[vgName]
	if !ok {
		return nil, ErrNotFound
	}
	return &vg, nil
}

// CreateLogicalVolume creates an LV on a VG.
func (f *Fake) CreateLogicalVolume(ctx context.Context, opts CreateLVOptions) error {
	if f.Err != nil {
		return f.Err
	}
	vg, ok := f.VGs[opts.VGName]
	if !ok {
		return ErrNotFound
	}
	fullName := opts.VGName + "/" + opts.Name
	if _, ok := f.LVs[fullName]; ok {
		return ErrAlreadyExists
	}
	lvType := opts.Type
	if lvType == "" {
		if opts.Stripes != nil && *opts.Stripes > 1 {
			lvType = "striped"
		} else {
			lvType = "linear"
		}
	}
	stripes := IntString(1)
	if opts.Stripes != nil {
		stripes = IntString(*opts.Stripes)
	}
	f.LVs[fullName] = LogicalVolume{
		Name:     opts.Name,
		FullName: fullName,
		Path:     "/dev/" + fullName,
		DMPath:   "/dev/mapper/" + opts.VGName + "-" + opts.Name,
		VGName:   opts.VGName,
		Active:   "active",
		Size:     Int64String(vg.Size),
		Type:     lvType,
		Stripes:  stripes,
	}
	vg.LVCount++
	vg.Free = 0
	f.VGs[opts.VGName] = vg
	f.Calls = append(f.Calls, "lvcreate "+fullName)
	return nil
}

// UpdateLogicalVolume changes LV attributes.
func (f *Fake) UpdateLogicalVolume(ctx context.Context, opts UpdateLVOptions) error {
	if f.Err != nil {
		return f.Err
	}
	lv, ok := f.LVs[opts.Name]
	if !ok {
		return ErrNotFound
	}
	if opts.Activate != nil {
		if *opts.Activate {
			lv.Active = "active"
		} else {
			lv.Active = ""
		}
	}
	f.LVs[opts.Name] = lv
	f.Calls = append(f.Calls, "lvchange "+opts.Name)
	return nil
}

// ListLogicalVolumes lists the specified LVs.
func (f *Fake) ListLogicalVolumes(ctx context.Context, opts *ListLVOptions) ([]LogicalVolume, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	var lvs []LogicalVolume
	for _, lv := range f.LVs {
		if opts != nil && len(opts.Names) > 0 && !contains(opts.Names, lv.FullName) {
			continue
		}
		lvs = append(lvs, lv)
	}
	return lvs, nil
}

// GetLogicalVolume returns the named LV.
func (f *Fake) GetLogicalVolume(ctx context.Context, vgName string, lvName string) (*LogicalVolume, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	lv, ok := f.LVs[vgName+"/"+lvName]
	if !ok {
		return nil, ErrNotFound
	}
	return &lv, nil
}

// MarkPVMissing simulates a PV that is recorded in VG metadata but whose
// backing device has disappeared.
func (f *Fake) MarkPVMissing(pvName string) {
	pv, ok := f.PVs[pvName]
	if !ok {
		return
	}
	pv.Missing = true
	f.PVs[pvName] = pv
	if vg, ok := f.VGs[pv.VGName]; ok {
		vg.MissingPVCount++
		vg.Partial = true
		f.VGs[pv.VGName] = vg
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
