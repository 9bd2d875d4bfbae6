// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import "strings"

// VPDRecord is a decoded Vital Product Data blob, the format defined by the
// PCI Local Bus Specification v2.2, Appendix I.
type VPDRecord struct {
	IdentifierString string            `json:"identifier_string,omitempty"`
	Fields           map[string]string `json:"fields"`
}

// VPD resource tags. Small-resource tags carry the length in the tag byte
// itself; large-resource tags are followed by a 16-bit little-endian length.
const (
	vpdTagIdentifier = 0x02 // large: identifier string
	vpdTagReadOnly   = 0x10 // large: VPD-R keyword list
	vpdTagReadWrite  = 0x11 // large: VPD-W keyword list, skipped
	vpdTagEnd        = 0x0f // small: end of VPD
)

// DecodeVPD decodes a raw VPD blob. Decoding never fails: a truncated or
// malformed blob yields whatever was decoded before the bad element. The
// input is not modified.
func DecodeVPD(data []byte) *VPDRecord {
	rec := &VPDRecord{Fields: map[string]string{}}
	// The RV field in the VPD-R list is chosen so that all bytes from the
	// start of the VPD through the RV byte sum to zero. The sum accumulates
	// across the identifier and VPD-R resources, headers included.
	var checksum uint8
	pos := 0
	for pos < len(data) {
		hdr := data[pos]
		var tag, length int
		headerSum := hdr
		if hdr&0x80 == 0 {
			// Small resource: 0b0TTTTLLL.
			tag = int(hdr&0x78) >> 3
			length = int(hdr & 0x07)
			pos++
		} else {
			tag = int(hdr & 0x7f)
			if pos+3 > len(data) {
				return rec
			}
			length = int(data[pos+1]) | int(data[pos+2])<<8
			headerSum += data[pos+1] + data[pos+2]
			pos += 3
		}
		if tag == vpdTagEnd {
			return rec
		}
		if pos+length > len(data) {
			// Declared length runs past the blob; keep what we have.
			return rec
		}
		body := data[pos : pos+length]
		pos += length
		switch tag {
		case vpdTagIdentifier:
			checksum += headerSum
			for _, b := range body {
				checksum += b
			}
			rec.IdentifierString = strings.TrimSpace(string(body))
		case vpdTagReadOnly:
			checksum += headerSum
			for _, b := range body {
				checksum += b
			}
			// A non-zero sum means the read-only list is corrupt, so its
			// fields are dropped rather than trusted.
			if checksum != 0 {
				continue
			}
			decodeVPDKeywords(body, rec.Fields)
		case vpdTagReadWrite:
			// Read/write fields carry no product information and touching
			// them can be very slow on real hardware.
		default:
			// Unrecognized tag: the length field still tells us how much
			// to skip, so it is not fatal.
		}
	}
	return rec
}

// decodeVPDKeywords walks a keyword list: two ASCII key bytes, one length
// byte, then the value. A duplicate key overwrites the earlier value.
func decodeVPDKeywords(data []byte, fields map[string]string) {
	for len(data) >= 3 {
		key := string(data[0:2])
		length := int(data[2])
		if len(data) < 3+length {
			return
		}
		// RV holds the checksum and reserved padding, not product data.
		if key != "RV" {
			fields[key] = strings.TrimSpace(string(data[3 : 3+length]))
		}
		data = data[3+length:]
	}
}
