// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"fmt"
	"regexp"
	"strconv"
)

// Long PCI address format is Domain:Bus:Device.Function. The domain is not
// always 0000 (ARM systems expose several), and may be wider than 16 bits.
var longAddrPattern = regexp.MustCompile(`^([0-9a-fA-F]{2,8}):([0-9a-fA-F]{2}):([01][0-9a-fA-F])[:.]0*([0-7])$`)

// Short PCI address format is Bus:Device.Function with an implied zero domain.
var shortAddrPattern = regexp.MustCompile(`^([0-9a-fA-F]{2}):([01][0-9a-fA-F])\.([0-7])$`)

// Address identifies a single PCI function. It is the unique identity key of
// a device within one snapshot.
type Address struct {
	Domain   uint32
	Bus      uint8
	Device   uint8
	Function uint8
}

// ParseAddress accepts a long (0000:02:00.0) or short (02:00.0) PCI address
// and returns its normalized form.
func ParseAddress(s string) (Address, error) {
	if m := longAddrPattern.FindStringSubmatch(s); m != nil {
		domain, err := strconv.ParseUint(m[1], 16, 32)
		if err != nil {
			return Address{}, fmt.Errorf("invalid pci domain %q: %w", m[1], err)
		}
		return Address{
			Domain:   uint32(domain),
			Bus:      hexByte(m[2]),
			Device:   hexByte(m[3]),
			Function: hexByte(m[4]),
		}, nil
	}
	if m := shortAddrPattern.FindStringSubmatch(s); m != nil {
		return Address{
			Bus:      hexByte(m[1]),
			Device:   hexByte(m[2]),
			Function: hexByte(m[3]),
		}, nil
	}
	return Address{}, fmt.Errorf("invalid pci address %q", s)
}

// hexByte parses a 1-2 digit hex string already validated by the address
// patterns above.
func hexByte(s string) uint8 {
	v, _ := strconv.ParseUint(s, 16, 8)
	return uint8(v)
}

// String returns the long form, e.g. "0000:02:00.0".
func (a Address) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", a.Domain, a.Bus, a.Device, a.Function)
}

// Short returns the bus:device.function form when the domain is zero. Short
// addresses do not uniquely identify a device on multi-domain systems, so
// they are only used for display.
func (a Address) Short() string {
	if a.Domain != 0 {
		return a.String()
	}
	return fmt.Sprintf("%02x:%02x.%x", a.Bus, a.Device, a.Function)
}

// Less orders addresses by domain, bus, device and function. It defines the
// deterministic output ordering of every view.
func (a Address) Less(b Address) bool {
	if a.Domain != b.Domain {
		return a.Domain < b.Domain
	}
	if a.Bus != b.Bus {
		return a.Bus < b.Bus
	}
	if a.Device != b.Device {
		return a.Device < b.Device
	}
	return a.Function < b.Function
}
