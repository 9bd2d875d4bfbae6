// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"fmt"
	"sort"
)

// TopologyError reports a parent reference that does not resolve to any
// device in the snapshot. It means the live tree changed while it was being
// read, so the snapshot cannot be trusted and the run aborts.
type TopologyError struct {
	Addr   Address
	Parent Address
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("device %s references parent %s which is not in the snapshot", e.Addr, e.Parent)
}

// Node wraps one device and its downstream children. Nodes are immutable
// after BuildForest returns.
type Node struct {
	Device   *Device
	Children []*Node
}

// Forest is the rooted device topology of one snapshot. Every device of the
// snapshot appears in exactly one node.
type Forest struct {
	Roots []*Node

	nodes map[Address]*Node
}

// BuildForest links the flat device list into a forest using each device's
// parent address. Two passes: index every device first, then link, so the
// input order never matters.
func BuildForest(devices []*Device) (*Forest, error) {
	f := &Forest{nodes: make(map[Address]*Node, len(devices))}
	for _, d := range devices {
		f.nodes[d.Addr] = &Node{Device: d}
	}
	for _, d := range devices {
		node := f.nodes[d.Addr]
		if d.Parent == nil {
			f.Roots = append(f.Roots, node)
			continue
		}
		parent, ok := f.nodes[*d.Parent]
		if !ok {
			return nil, &TopologyError{Addr: d.Addr, Parent: *d.Parent}
		}
		parent.Children = append(parent.Children, node)
	}

	sort.Slice(f.Roots, func(i, j int) bool {
		return f.Roots[i].Device.Addr.Less(f.Roots[j].Device.Addr)
	})
	for _, n := range f.nodes {
		children := n.Children
		sort.Slice(children, func(i, j int) bool {
			return children[i].Device.Addr.Less(children[j].Device.Addr)
		})
	}
	return f, nil
}

// Node returns the node for addr, or nil when the address is not in the
// snapshot.
func (f *Forest) Node(addr Address) *Node {
	return f.nodes[addr]
}

// Len returns the number of devices in the forest.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Path returns the ancestor addresses of addr ordered self-to-root,
// excluding addr itself.
func (f *Forest) Path(addr Address) []Address {
	var path []Address
	node := f.nodes[addr]
	if node == nil {
		return nil
	}
	for p := node.Device.Parent; p != nil; {
		path = append(path, *p)
		anc := f.nodes[*p]
		if anc == nil {
			break
		}
		p = anc.Device.Parent
	}
	return path
}

// Devices returns every device of the forest ordered by address.
func (f *Forest) Devices() []*Device {
	devices := make([]*Device, 0, len(f.nodes))
	for _, n := range f.nodes {
		devices = append(devices, n.Device)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Addr.Less(devices[j].Addr)
	})
	return devices
}
