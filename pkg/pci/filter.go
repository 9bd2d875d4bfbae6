// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import "sort"

// Filter is an immutable filter specification. Nil predicate fields are not
// applied; a device matches when every supplied predicate holds.
type Filter struct {
	// Class restricts by masked class code (alias or literal).
	Class *ClassMatch
	// VendorID restricts by vendor; DeviceID additionally by device and is
	// only consulted when VendorID is set.
	VendorID *ID
	DeviceID *ID
	// Addr restricts to one exact device address.
	Addr *Address
	// ExpressOnly drops devices without a PCI Express capability.
	ExpressOnly bool
	// PhysFnOnly drops SR-IOV virtual functions.
	PhysFnOnly bool
	// NoBuiltin drops root-bus devices that are neither root ports nor
	// bridges to anything, i.e. built-in platform endpoints.
	NoBuiltin bool
	// IncludePath adds every ancestor of a matched device to the
	// selection as (unmatched) context.
	IncludePath bool
}

// Selection is the outcome of applying a Filter to a Forest. Devices is
// ordered by address and includes ancestor context when requested; Matched
// distinguishes real matches from context nodes.
type Selection struct {
	Forest  *Forest
	Devices []*Device
	Matched map[Address]bool
}

// IsMatch reports whether addr matched the filter predicates (rather than
// being included as ancestor context).
func (s *Selection) IsMatch(addr Address) bool {
	return s.Matched[addr]
}

// Apply evaluates the filter against the forest. Filtering is a pure
// function of (forest, filter): no matches yields an empty selection, never
// an error.
func Apply(f *Forest, flt Filter) *Selection {
	sel := &Selection{Forest: f, Matched: map[Address]bool{}}
	included := map[Address]bool{}

	for _, dev := range f.Devices() {
		if !matches(f, dev, flt) {
			continue
		}
		sel.Matched[dev.Addr] = true
		included[dev.Addr] = true
		if flt.IncludePath {
			for _, anc := range f.Path(dev.Addr) {
				included[anc] = true
			}
		}
	}

	for addr := range included {
		sel.Devices = append(sel.Devices, f.Node(addr).Device)
	}
	sort.Slice(sel.Devices, func(i, j int) bool {
		return sel.Devices[i].Addr.Less(sel.Devices[j].Addr)
	})
	return sel
}

func matches(f *Forest, dev *Device, flt Filter) bool {
	if flt.Addr != nil && dev.Addr != *flt.Addr {
		return false
	}
	if flt.VendorID != nil {
		if dev.VendorID != *flt.VendorID {
			return false
		}
		if flt.DeviceID != nil && dev.DeviceID != *flt.DeviceID {
			return false
		}
	}
	if flt.Class != nil && !flt.Class.Matches(dev.ClassID) {
		return false
	}
	if flt.ExpressOnly && !dev.IsExpress() {
		return false
	}
	if flt.PhysFnOnly && dev.VirtualFunction {
		return false
	}
	if flt.NoBuiltin && dev.Parent == nil && dev.ExpressType != RootPort {
		if node := f.Node(dev.Addr); node == nil || len(node.Children) == 0 {
			return false
		}
	}
	return true
}
