// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ReadError marks a device whose identifying attributes could not be read,
// typically a vanished sysfs entry or missing privilege. The device is
// skipped; the run continues as long as any device remains readable.
type ReadError struct {
	Addr string
	Attr string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s of device %s: %v", e.Attr, e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ScanOptions controls a snapshot scan.
type ScanOptions struct {
	// IncludeVPD reads and decodes each device's VPD blob. The read is
	// privileged and slow, so it is off by default.
	IncludeVPD bool
	// IncludeAER gathers Advanced Error Reporting statistics.
	IncludeAER bool
	// SlotNames maps device addresses to firmware slot designations, as
	// returned by DMISlots. Used for the location string.
	SlotNames map[string]string
	// OnDevice, when set, is called after each device attempt with the
	// number of devices handled so far and the total.
	OnDevice func(done, total int)
}

// Scan takes one read-only snapshot of every device the accessor exposes.
// Per-device read failures are logged and the device skipped; Scan fails
// only when no device at all could be read.
func Scan(acc Accessor, opts ScanOptions) ([]*Device, error) {
	names, err := acc.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("enumerating pci devices: %w", err)
	}
	sort.Strings(names)

	devices := make([]*Device, 0, len(names))
	for i, name := range names {
		dev, err := readDevice(acc, name, opts)
		if err != nil {
			log.Warn().Err(err).Str("addr", name).Msg("skipping unreadable device")
		} else {
			devices = append(devices, dev)
		}
		if opts.OnDevice != nil {
			opts.OnDevice(i+1, len(names))
		}
	}
	if len(names) > 0 && len(devices) == 0 {
		return nil, fmt.Errorf("none of the %d pci devices were readable", len(names))
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Addr.Less(devices[j].Addr)
	})
	fillLocations(devices, opts.SlotNames)
	return devices, nil
}

// readDevice builds one Device from its sysfs attributes. Identity
// attributes are required; everything else degrades to absent.
func readDevice(acc Accessor, name string, opts ScanOptions) (*Device, error) {
	addr, err := ParseAddress(name)
	if err != nil {
		return nil, &ReadError{Addr: name, Attr: "address", Err: err}
	}
	dev := &Device{Addr: addr}

	for _, attr := range []struct {
		name string
		dst  *ID
	}{
		{"vendor", &dev.VendorID},
		{"device", &dev.DeviceID},
		{"class", &dev.ClassID},
		{"subsystem_vendor", &dev.SubsystemVendor},
		{"subsystem_device", &dev.SubsystemDevice},
	} {
		raw, err := acc.ReadAttr(name, attr.name)
		if err != nil {
			return nil, &ReadError{Addr: name, Attr: attr.name, Err: err}
		}
		v, err := parseHexAttr(raw)
		if err != nil {
			// A malformed value is scoped to the one attribute; the
			// device itself stays in the snapshot.
			log.Warn().Str("addr", name).Str("attribute", attr.name).Str("value", raw).
				Msg("malformed attribute value, treating as absent")
			continue
		}
		*attr.dst = ID(v)
	}

	if parent, ok := acc.ParentOf(name); ok {
		if pa, err := ParseAddress(parent); err == nil {
			dev.Parent = &pa
		}
	}
	dev.VirtualFunction = acc.HasFile(name, "physfn")

	if cfg, err := acc.ReadBinary(name, "config"); err == nil {
		expType, link, slot, err := decodeExpress(cfg)
		if err != nil {
			log.Warn().Err(err).Str("addr", name).Msg("could not decode express capability")
		} else {
			dev.ExpressType = expType
			dev.Link = link
			dev.Slot = slot
		}
	} else {
		log.Debug().Err(err).Str("addr", name).Msg("config space not readable")
	}

	if opts.IncludeVPD {
		dev.VPD = readVPD(acc, name)
	}
	if opts.IncludeAER {
		dev.AER = readAER(acc, name, dev.ExpressType)
	}
	return dev, nil
}

// readVPD loads and decodes the VPD blob. A device without a vpd attribute
// simply has no VPD; any other failure is a real I/O problem worth logging.
func readVPD(acc Accessor, name string) *VPDRecord {
	blob, err := acc.ReadBinary(name, "vpd")
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("addr", name).Msg("vpd read failed")
		}
		return nil
	}
	return DecodeVPD(blob)
}

// parseHexAttr parses a sysfs numeric attribute, which the kernel exposes
// as 0x-prefixed hex.
func parseHexAttr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// fillLocations derives each device's human-readable location from its
// chain of upstream ports: the firmware slot designation when the platform
// names the slot, otherwise the port's slot number and express type.
func fillLocations(devices []*Device, slotNames map[string]string) {
	byAddr := make(map[Address]*Device, len(devices))
	for _, d := range devices {
		byAddr[d.Addr] = d
	}
	for _, d := range devices {
		var parts []string
		for p := d.Parent; p != nil; {
			anc, ok := byAddr[*p]
			if !ok {
				break
			}
			if desig, ok := slotNames[anc.Addr.String()]; ok {
				parts = append(parts, desig)
			} else {
				var el []string
				if anc.Slot != nil {
					el = append(el, fmt.Sprintf("slot %d", anc.Slot.Number))
				}
				if anc.Link != nil {
					el = append(el, string(anc.ExpressType))
				}
				if len(el) > 0 {
					parts = append(parts, strings.Join(el, ", "))
				}
			}
			p = anc.Parent
		}
		d.Location = strings.Join(parts, " -> ")
	}
}
