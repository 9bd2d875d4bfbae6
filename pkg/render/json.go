// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"io"

	"gitlab.clyso.com/clyso/pciscan/pkg/pci"
)

// JSON writes the selection as a map keyed by device address. The shape is
// stable for scripting: identity IDs, express/link/slot state, location,
// the upstream path, and optional vpd/aer sections.
func JSON(w io.Writer, sel *pci.Selection, opts Options) error {
	out := make(map[string]map[string]any, len(sel.Devices))
	for _, dev := range sel.Devices {
		out[dev.Addr.String()] = deviceJSON(dev, sel, opts)
	}
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func deviceJSON(dev *pci.Device, sel *pci.Selection, opts Options) map[string]any {
	jd := map[string]any{
		"addr": dev.Addr.String(),
	}
	if opts.Hexify {
		// IDs are opaque codes; fixed-width hex keeps them lossless and
		// diffable.
		jd["vendor_id"] = dev.VendorID.Hex(4)
		jd["device_id"] = dev.DeviceID.Hex(4)
		jd["subsystem_vendor"] = dev.SubsystemVendor.Hex(4)
		jd["subsystem_device"] = dev.SubsystemDevice.Hex(4)
		jd["class_id"] = dev.ClassID.Hex(6)
	} else {
		jd["vendor_id"] = uint32(dev.VendorID)
		jd["device_id"] = uint32(dev.DeviceID)
		jd["subsystem_vendor"] = uint32(dev.SubsystemVendor)
		jd["subsystem_device"] = uint32(dev.SubsystemDevice)
		jd["class_id"] = uint32(dev.ClassID)
	}
	if dev.IsExpress() {
		jd["express_type"] = string(dev.ExpressType)
	}
	if link := dev.Link; link != nil {
		jd["cur_speed"] = link.CurSpeed
		jd["cur_width"] = link.CurWidth
		jd["capable_speed"] = link.CapableSpeed
		jd["capable_width"] = link.CapableWidth
		if link.TargetSpeed != "" {
			jd["target_speed"] = link.TargetSpeed
		}
	}
	if slot := dev.Slot; slot != nil {
		jd["slot"] = slot.Number
		jd["presence"] = slot.Presence
		if slot.Power != nil {
			jd["power"] = *slot.Power
		}
		jd["attn_led"] = slot.AttnLED
	}
	if dev.Location != "" {
		jd["location"] = dev.Location
	}

	// Upstream path, nearest ancestor first, excluding the device itself.
	path := make([]string, 0, 4)
	for _, anc := range sel.Forest.Path(dev.Addr) {
		path = append(path, anc.String())
	}
	jd["path"] = path

	if opts.VPD && dev.VPD != nil {
		jd["vpd"] = dev.VPD
	}
	if opts.AER && dev.AER != nil {
		jd["aer"] = dev.AER
	}
	if opts.MarkMatches {
		jd["matched"] = sel.IsMatch(dev.Addr)
	}
	return jd
}
