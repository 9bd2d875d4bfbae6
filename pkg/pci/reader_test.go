// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAccessor is a synthetic device tree for tests.
type fakeAccessor struct {
	attrs    map[string]map[string]string
	binaries map[string]map[string][]byte
	parents  map[string]string
	listErr  error
}

func (f *fakeAccessor) ListDevices() ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.attrs))
	for name := range f.attrs {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeAccessor) ReadAttr(addr, name string) (string, error) {
	if v, ok := f.attrs[addr][name]; ok {
		return v, nil
	}
	return "", fs.ErrNotExist
}

func (f *fakeAccessor) ReadBinary(addr, name string) ([]byte, error) {
	if v, ok := f.binaries[addr][name]; ok {
		return v, nil
	}
	return nil, fs.ErrNotExist
}

func (f *fakeAccessor) ParentOf(addr string) (string, bool) {
	p, ok := f.parents[addr]
	return p, ok
}

func (f *fakeAccessor) HasFile(addr, name string) bool {
	if _, ok := f.attrs[addr][name]; ok {
		return true
	}
	_, ok := f.binaries[addr][name]
	return ok
}

func identityAttrs(vendor, device, class string) map[string]string {
	return map[string]string{
		"vendor":           vendor,
		"device":           device,
		"class":            class,
		"subsystem_vendor": "0x0000",
		"subsystem_device": "0x0000",
	}
}

func TestScanReadsIdentityAttributes(t *testing.T) {
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{
			"0000:02:00.0": identityAttrs("0x144d", "0xa808", "0x010802"),
			"0000:00:1d.4": identityAttrs("0x8086", "0xa330", "0x060400"),
		},
		parents: map[string]string{"0000:02:00.0": "0000:00:1d.4"},
	}
	devices, err := Scan(acc, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, devices, 2)

	// Deterministic address order regardless of enumeration order.
	assert.Equal(t, "0000:00:1d.4", devices[0].Addr.String())
	assert.Equal(t, "0000:02:00.0", devices[1].Addr.String())

	nvme := devices[1]
	assert.Equal(t, ID(0x144d), nvme.VendorID)
	assert.Equal(t, ID(0xa808), nvme.DeviceID)
	assert.Equal(t, ID(0x010802), nvme.ClassID)
	require.NotNil(t, nvme.Parent)
	assert.Equal(t, "0000:00:1d.4", nvme.Parent.String())
	assert.Nil(t, devices[0].Parent)
}

func TestScanSkipsUnreadableDevice(t *testing.T) {
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{
			"0000:02:00.0": identityAttrs("0x144d", "0xa808", "0x010802"),
			// Missing the vendor attribute entirely.
			"0000:03:00.0": {"device": "0x0001", "class": "0x010802"},
		},
	}
	devices, err := Scan(acc, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "0000:02:00.0", devices[0].Addr.String())
}

func TestScanMalformedAttributeIsAbsentNotFatal(t *testing.T) {
	attrs := identityAttrs("0x144d", "0xa808", "0x010802")
	attrs["subsystem_vendor"] = "not-hex"
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{"0000:02:00.0": attrs},
	}
	devices, err := Scan(acc, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, ID(0x144d), devices[0].VendorID)
	assert.Equal(t, ID(0), devices[0].SubsystemVendor)
}

func TestScanFailsWhenNothingIsReadable(t *testing.T) {
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{
			"0000:02:00.0": {},
			"0000:03:00.0": {},
		},
	}
	_, err := Scan(acc, ScanOptions{})
	assert.Error(t, err)
}

func TestScanEmptyTree(t *testing.T) {
	acc := &fakeAccessor{attrs: map[string]map[string]string{}}
	devices, err := Scan(acc, ScanOptions{})
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestScanEnumerationFailureIsFatal(t *testing.T) {
	acc := &fakeAccessor{listErr: errors.New("permission denied")}
	_, err := Scan(acc, ScanOptions{})
	assert.ErrorContains(t, err, "enumerating")
}

func TestScanDecodesExpressFromConfigSpace(t *testing.T) {
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{
			"0000:02:00.0": identityAttrs("0x144d", "0xa808", "0x010802"),
		},
		binaries: map[string]map[string][]byte{
			"0000:02:00.0": {
				"config": buildConfig(expressConfig{
					devType:    0x0,
					capVersion: 2,
					lnkSta:     3 | 4<<4,
					lnkCap:     4 | 8<<4,
					lnkCtl2:    4,
				}),
			},
		},
	}
	devices, err := Scan(acc, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, Endpoint, devices[0].ExpressType)
	require.NotNil(t, devices[0].Link)
	assert.Equal(t, "8GT/s", devices[0].Link.CurSpeed)
}

func TestScanReadsVPDOnlyWhenRequested(t *testing.T) {
	blob := buildVPD("Widget", [][2]string{{"PN", "X"}, {"SN", "Y"}})
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{
			"0000:02:00.0": identityAttrs("0x144d", "0xa808", "0x010802"),
		},
		binaries: map[string]map[string][]byte{
			"0000:02:00.0": {"vpd": blob},
		},
	}

	devices, err := Scan(acc, ScanOptions{})
	require.NoError(t, err)
	assert.Nil(t, devices[0].VPD)

	devices, err = Scan(acc, ScanOptions{IncludeVPD: true})
	require.NoError(t, err)
	require.NotNil(t, devices[0].VPD)
	assert.Equal(t, "Widget", devices[0].VPD.IdentifierString)
	assert.Equal(t, map[string]string{"PN": "X", "SN": "Y"}, devices[0].VPD.Fields)
}

func TestScanDeviceWithoutVPDStaysAbsent(t *testing.T) {
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{
			"0000:02:00.0": identityAttrs("0x144d", "0xa808", "0x010802"),
		},
	}
	devices, err := Scan(acc, ScanOptions{IncludeVPD: true})
	require.NoError(t, err)
	assert.Nil(t, devices[0].VPD)
}

func TestScanMarksVirtualFunctions(t *testing.T) {
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{
			"0000:02:00.0": identityAttrs("0x15b3", "0x1018", "0x020000"),
			"0000:02:00.2": func() map[string]string {
				m := identityAttrs("0x15b3", "0x1018", "0x020000")
				m["physfn"] = ""
				return m
			}(),
		},
	}
	devices, err := Scan(acc, ScanOptions{})
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.False(t, devices[0].VirtualFunction)
	assert.True(t, devices[1].VirtualFunction)
}

func TestScanProgressCallback(t *testing.T) {
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{
			"0000:02:00.0": identityAttrs("0x144d", "0xa808", "0x010802"),
			"0000:03:00.0": identityAttrs("0x8086", "0x1533", "0x020000"),
		},
	}
	var calls [][2]int
	_, err := Scan(acc, ScanOptions{OnDevice: func(done, total int) {
		calls = append(calls, [2]int{done, total})
	}})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}

func TestScanLocationFromSlotDesignations(t *testing.T) {
	rootCfg := buildConfig(expressConfig{
		devType:    0x4,
		capVersion: 2,
		lnkSta:     3 | 4<<4,
		lnkCap:     3 | 4<<4,
		slot:       true,
		slotCap:    uint32(7) << 19,
		slotSta:    sltStaPresence,
	})
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{
			"0000:00:1d.4": identityAttrs("0x8086", "0xa330", "0x060400"),
			"0000:02:00.0": identityAttrs("0x144d", "0xa808", "0x010802"),
		},
		binaries: map[string]map[string][]byte{
			"0000:00:1d.4": {"config": rootCfg},
		},
		parents: map[string]string{"0000:02:00.0": "0000:00:1d.4"},
	}

	devices, err := Scan(acc, ScanOptions{
		SlotNames: map[string]string{"0000:00:1d.4": "PCIe Slot 7"},
	})
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "PCIe Slot 7", devices[1].Location)
	assert.Empty(t, devices[0].Location)

	// Without firmware data the location falls back to slot number and
	// port type.
	devices, err = Scan(acc, ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, "slot 7, root_port", devices[1].Location)
}

func TestScanReadsAERForExpressDevices(t *testing.T) {
	attrs := identityAttrs("0x8086", "0xa330", "0x060400")
	attrs["aer_dev_correctable"] = "RxErr 3\nBadTLP 1\nBadDLLP 0"
	attrs["aer_rootport_total_err_cor"] = "4"
	acc := &fakeAccessor{
		attrs: map[string]map[string]string{"0000:00:1d.4": attrs},
		binaries: map[string]map[string][]byte{
			"0000:00:1d.4": {"config": buildConfig(expressConfig{
				devType:    0x4,
				capVersion: 2,
				lnkSta:     3 | 4<<4,
				lnkCap:     3 | 4<<4,
			})},
		},
	}
	devices, err := Scan(acc, ScanOptions{IncludeAER: true})
	require.NoError(t, err)
	require.NotNil(t, devices[0].AER)
	assert.Equal(t, int64(3), devices[0].AER.Device["aer_dev_correctable"]["RxErr"])
	assert.Equal(t, int64(4), devices[0].AER.RootPort["aer_rootport_total_err_cor"])
}
