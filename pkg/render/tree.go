// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"io"
	"sort"

	"gitlab.clyso.com/clyso/pciscan/pkg/pci"
)

// Tree writes the selection as an indented topology tree. Without root
// privileges express types are not decodable, so root detection also uses a
// structural heuristic: a parentless device with downstream children is
// treated as a root port.
func Tree(w io.Writer, sel *pci.Selection, opts Options) error {
	st := newStyles(opts.Color)

	groups := map[pci.Address][]*pci.Device{}
	inSelection := map[pci.Address]bool{}
	for _, dev := range sel.Devices {
		inSelection[dev.Addr] = true
	}
	for _, dev := range sel.Devices {
		if dev.Parent != nil && inSelection[*dev.Parent] {
			groups[*dev.Parent] = append(groups[*dev.Parent], dev)
		}
	}

	rootSet := map[pci.Address]*pci.Device{}
	for _, dev := range sel.Devices {
		if dev.ExpressType == pci.RootPort {
			rootSet[dev.Addr] = dev
		}
		if dev.Parent == nil && len(groups[dev.Addr]) > 0 {
			rootSet[dev.Addr] = dev
		}
	}
	roots := make([]*pci.Device, 0, len(rootSet))
	for _, dev := range rootSet {
		roots = append(roots, dev)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Addr.Less(roots[j].Addr) })

	for _, root := range roots {
		if err := writeTreeNode(w, root, "", "", groups, st, opts); err != nil {
			return err
		}
	}
	return nil
}

func writeTreeNode(w io.Writer, dev *pci.Device, connector, childPrefix string, groups map[pci.Address][]*pci.Device, st styles, opts Options) error {
	if _, err := fmt.Fprintln(w, connector+treeLine(dev, st, opts)); err != nil {
		return err
	}
	children := groups[dev.Addr]
	for i, child := range children {
		conn, next := childPrefix+" ├─", childPrefix+" │ "
		if i == len(children)-1 {
			conn, next = childPrefix+" └─", childPrefix+"   "
		}
		if err := writeTreeNode(w, child, conn, next, groups, st, opts); err != nil {
			return err
		}
	}
	return nil
}

// treeLine formats one device entry: address, express type (or plain PCI),
// firmware slot designation, slot state, link state, and the product name
// for leaf-ish types.
func treeLine(dev *pci.Device, st styles, opts Options) string {
	line := st.addr.Render(dev.Addr.Short()) + " "
	if dev.IsExpress() {
		line += st.express.Render(string(dev.ExpressType))
	} else {
		line += st.plain.Render("PCI")
	}
	if desig, ok := opts.SlotNames[dev.Addr.String()]; ok {
		line += fmt.Sprintf(", %q", desig)
	}
	if slot := dev.Slot; slot != nil {
		line += ", slot " + st.slot.Render(fmt.Sprintf("%d", slot.Number))
		if slot.Presence {
			line += ", " + st.slot.Render("device present")
		}
		if slot.Power != nil {
			if *slot.Power {
				line += ", power: " + st.good.Render("On")
			} else {
				line += ", power: " + st.bad.Render("Off")
			}
		}
		if slot.AttnLED != "unsupported" && slot.AttnLED != "off" {
			line += ", attn: " + st.bad.Render(slot.AttnLED)
		}
	}
	if link := dev.Link; link != nil {
		downstream := dev.ExpressType == pci.DownstreamPort || dev.ExpressType == pci.RootPort
		if downstream && link.CurWidth != 0 {
			line += ", speed " + st.slot.Render(link.CurSpeed) +
				", width " + st.slot.Render(fmt.Sprintf("x%d", link.CurWidth))
		}
		// A port reports less than its target speed whenever its
		// downstream endpoint cannot reach it, so the mismatch is only
		// meaningful on endpoints with an active link.
		if link.TargetSpeed != "" && link.CurSpeed != link.TargetSpeed &&
			dev.ExpressType == pci.Endpoint && link.CurWidth != 0 {
			line += ", current speed " + st.slot.Render(link.CurSpeed) +
				" target speed " + st.slot.Render(link.TargetSpeed)
		}
	}
	switch dev.ExpressType {
	case pci.Endpoint, pci.UpstreamPort, pci.RootComplexEndpoint, "":
		line += ", " + st.name.Render(DeviceName(dev))
	}
	return line
}
