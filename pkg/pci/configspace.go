// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PCI configuration-space register offsets and bits.
const (
	cfgVendorOffset   = 0x04
	cfgStatusRegister = 0x06
	cfgCapListPointer = 0x34

	statusHasCapList = 0x10

	capIDExpress = 0x10

	// Offsets relative to the Express capability.
	expFlags   = 0x02
	expLnkCap  = 0x0c
	expLnkSta  = 0x12
	expSltCap  = 0x14
	expSltCtl  = 0x18
	expSltSta  = 0x1a
	expLnkCtl2 = 0x30

	expFlagSlot = 0x0100

	sltCapPowerCtl = 1 << 1
	sltCapAttnLED  = 1 << 3
	sltCtlPowerOff = 1 << 10
	sltStaPresence = 1 << 6
	sltCtlAttnMask = 0x00c0
)

var attnLEDValues = map[uint32]string{
	0x0000: "reserved",
	0x00c0: "off",
	0x0080: "blink",
	0x0040: "on",
}

// errNoCapability marks a device without the requested capability, as
// opposed to a config space we could not decode at all.
var errNoCapability = errors.New("capability not present")

func readU16(cfg []byte, off int) (uint16, error) {
	if off < 0 || off+2 > len(cfg) {
		return 0, fmt.Errorf("config space read at %#x past end (%d bytes)", off, len(cfg))
	}
	return binary.LittleEndian.Uint16(cfg[off : off+2]), nil
}

func readU32(cfg []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(cfg) {
		return 0, fmt.Errorf("config space read at %#x past end (%d bytes)", off, len(cfg))
	}
	return binary.LittleEndian.Uint32(cfg[off : off+4]), nil
}

// findCapability walks the capability list for the given capability ID and
// returns its offset. The walk keeps track of visited offsets because a
// corrupt list can loop.
func findCapability(cfg []byte, capID uint8) (int, error) {
	vendor, err := readU16(cfg, cfgVendorOffset)
	if err != nil {
		return 0, err
	}
	if vendor == 0xffff {
		// All-ones reads mean the device has likely gone missing.
		return 0, errors.New("config space is inaccessible")
	}
	status, err := readU16(cfg, cfgStatusRegister)
	if err != nil {
		return 0, err
	}
	if status&statusHasCapList == 0 {
		return 0, errNoCapability
	}

	visited := map[int]bool{}
	pos := cfgCapListPointer
	for pos < len(cfg) {
		if visited[pos] {
			return 0, errors.New("loop detected in capability list")
		}
		visited[pos] = true
		pos = int(cfg[pos])
		if pos == 0 || pos+1 >= len(cfg) {
			return 0, errNoCapability
		}
		if cfg[pos] == capID {
			return pos, nil
		}
		pos++
	}
	return 0, errNoCapability
}

// decodeExpress extracts the Express type, link state and slot state from a
// raw config space. A device without the Express capability yields an empty
// type and nil link/slot, which is not an error.
func decodeExpress(cfg []byte) (ExpressType, *Link, *Slot, error) {
	capOff, err := findCapability(cfg, capIDExpress)
	if errors.Is(err, errNoCapability) {
		return "", nil, nil, nil
	}
	if err != nil {
		return "", nil, nil, err
	}

	flags, err := readU16(cfg, capOff+expFlags)
	if err != nil {
		return "", nil, nil, err
	}
	expType, ok := expressTypes[(flags&0xf0)>>4]
	if !ok {
		return "", nil, nil, nil
	}
	capVersion := flags & 0xf

	link, err := decodeLink(cfg, capOff, expType, capVersion)
	if err != nil {
		return expType, nil, nil, err
	}
	slot, err := decodeSlot(cfg, capOff, flags)
	if err != nil {
		return expType, link, nil, err
	}
	return expType, link, slot, nil
}

func decodeLink(cfg []byte, capOff int, expType ExpressType, capVersion uint16) (*Link, error) {
	// Root-complex integrated endpoints and event collectors have no link.
	if expType == RootComplexEndpoint || expType == RootComplexEventCollector {
		return nil, nil
	}
	lnkSta, err := readU16(cfg, capOff+expLnkSta)
	if err != nil {
		return nil, err
	}
	lnkCap, err := readU16(cfg, capOff+expLnkCap)
	if err != nil {
		return nil, err
	}
	link := &Link{
		CurSpeed:     speedString(lnkSta & 0xf),
		CurWidth:     int((lnkSta & 0x3f0) >> 4),
		CapableSpeed: speedString(lnkCap & 0xf),
		CapableWidth: int((lnkCap & 0x3f0) >> 4),
	}
	if capVersion >= 2 {
		lnkCtl2, err := readU16(cfg, capOff+expLnkCtl2)
		if err != nil {
			return nil, err
		}
		if s, ok := expressSpeeds[lnkCtl2&0xf]; ok {
			link.TargetSpeed = s
		}
	}
	return link, nil
}

func decodeSlot(cfg []byte, capOff int, flags uint16) (*Slot, error) {
	if flags&expFlagSlot == 0 {
		return nil, nil
	}
	slotCap, err := readU32(cfg, capOff+expSltCap)
	if err != nil {
		return nil, err
	}
	slotSta, err := readU32(cfg, capOff+expSltSta)
	if err != nil {
		return nil, err
	}
	slotCtl, err := readU32(cfg, capOff+expSltCtl)
	if err != nil {
		return nil, err
	}

	slot := &Slot{
		Number:   int(slotCap >> 19),
		Presence: slotSta&sltStaPresence != 0,
		AttnLED:  "unsupported",
	}
	if slotCap&sltCapAttnLED != 0 {
		led, ok := attnLEDValues[slotCtl&sltCtlAttnMask]
		if !ok {
			led = "off"
		}
		slot.AttnLED = led
	}
	if slotCap&sltCapPowerCtl != 0 {
		// The control bit is inverted: 1 means powered off.
		on := slotCtl&sltCtlPowerOff == 0
		slot.Power = &on
	}
	return slot, nil
}

func speedString(code uint16) string {
	if s, ok := expressSpeeds[code]; ok {
		return s
	}
	return "unknown"
}
