// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import "fmt"

// ExpressType is the PCI Express device/port type from the Express
// capability register. Empty for plain PCI devices.
type ExpressType string

const (
	Endpoint                  ExpressType = "endpoint"
	LegacyEndpoint            ExpressType = "legacy_endpoint"
	RootPort                  ExpressType = "root_port"
	UpstreamPort              ExpressType = "upstream_port"
	DownstreamPort            ExpressType = "downstream_port"
	PCIBridge                 ExpressType = "pci_bridge"
	PCIeBridge                ExpressType = "pcie_bridge"
	RootComplexEndpoint       ExpressType = "root_complex_endpoint"
	RootComplexEventCollector ExpressType = "root_complex_event_collector"
)

var expressTypes = map[uint16]ExpressType{
	0x0: Endpoint,
	0x1: LegacyEndpoint,
	0x4: RootPort,
	0x5: UpstreamPort,
	0x6: DownstreamPort,
	0x7: PCIBridge,
	0x8: PCIeBridge,
	0x9: RootComplexEndpoint,
	0xa: RootComplexEventCollector,
}

var expressSpeeds = map[uint16]string{
	1: "2.5GT/s",
	2: "5GT/s",
	3: "8GT/s",
	4: "16GT/s",
	5: "32GT/s",
	6: "64GT/s",
}

// ID is an opaque numeric identifier code (vendor, device, subsystem or
// class). It stays numeric so renderers can choose decimal or lossless
// zero-padded hex.
type ID uint32

// Hex renders the code as a zero-padded hex string of the given width.
func (id ID) Hex(pad int) string {
	return fmt.Sprintf("%0*x", pad, uint32(id))
}

// Link is the negotiated PCIe link state of a device. Speeds are the
// human-readable transfer-rate strings ("8GT/s"); widths are lane counts.
type Link struct {
	CurSpeed     string `json:"cur_speed"`
	CurWidth     int    `json:"cur_width"`
	CapableSpeed string `json:"capable_speed"`
	CapableWidth int    `json:"capable_width"`
	TargetSpeed  string `json:"target_speed,omitempty"`
}

// Slot is the physical slot state decoded from the Express slot registers.
// Power is nil when the slot has no power controller.
type Slot struct {
	Number   int    `json:"slot"`
	Presence bool   `json:"presence"`
	Power    *bool  `json:"power,omitempty"`
	AttnLED  string `json:"attn_led,omitempty"`
}

// Device is one PCI/PCIe function as read from the kernel. Optional fields
// are nil/empty when the platform does not expose them; that is never an
// error on its own.
type Device struct {
	Addr            Address
	VendorID        ID
	DeviceID        ID
	ClassID         ID
	SubsystemVendor ID
	SubsystemDevice ID

	ExpressType ExpressType
	Link        *Link
	Slot        *Slot

	// Location describes how the device is physically connected, derived
	// from firmware slot data and the upstream port chain.
	Location string

	// Parent is the address of the immediate upstream device; nil for
	// root-bus devices.
	Parent *Address

	// VirtualFunction reports whether this is an SR-IOV VF (a physfn link
	// exists in sysfs).
	VirtualFunction bool

	VPD *VPDRecord
	AER *AERStats
}

// IsExpress reports whether the device exposes a PCI Express capability.
func (d *Device) IsExpress() bool {
	return d.ExpressType != ""
}
