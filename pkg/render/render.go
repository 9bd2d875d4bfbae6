// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

// Package render turns a filtered device selection into the flat, tree or
// JSON representations shown to the user.
package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"gitlab.clyso.com/clyso/pciscan/pkg/pci"
)

// Options controls rendering. The core selection stays untouched; these
// only affect presentation.
type Options struct {
	// Hexify renders vendor/device/subsystem/class IDs as zero-padded hex
	// strings instead of numbers in JSON output.
	Hexify bool
	// VPD includes decoded vital product data where present.
	VPD bool
	// AER includes advanced error reporting counters (JSON only).
	AER bool
	// MarkMatches adds a matched flag to JSON output so ancestor context
	// nodes are distinguishable from real filter matches.
	MarkMatches bool
	// Color enables ANSI styling; leave off when stdout is not a tty.
	Color bool
	// SlotNames maps addresses to firmware slot designations for the tree
	// view.
	SlotNames map[string]string
}

type styles struct {
	addr, express, plain, name, slot, good, bad lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		return styles{}
	}
	return styles{
		addr:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		express: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		plain:   lipgloss.NewStyle().Underline(true),
		name:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		slot:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		good:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		bad:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// Flat writes one line per selected device, ordered by address.
func Flat(w io.Writer, sel *pci.Selection, opts Options) error {
	st := newStyles(opts.Color)
	bold := lipgloss.NewStyle()
	if opts.Color {
		bold = bold.Bold(true)
	}
	for _, dev := range sel.Devices {
		line := st.addr.Render(dev.Addr.String()) + ", "
		if dev.IsExpress() {
			line += "PCIe " + st.express.Render(string(dev.ExpressType)) + ", "
		}
		line += st.name.Render(DeviceName(dev))
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if dev.Location != "" {
			if _, err := fmt.Fprintf(w, "  connected via: %s\n", bold.Render(dev.Location)); err != nil {
				return err
			}
		}
		if opts.VPD && dev.VPD != nil {
			if dev.VPD.IdentifierString != "" {
				if _, err := fmt.Fprintf(w, "  VPD Identifier: %s\n", bold.Render(dev.VPD.IdentifierString)); err != nil {
					return err
				}
			}
			for _, key := range sortedKeys(dev.VPD.Fields) {
				if _, err := fmt.Fprintf(w, "    %s=%s\n", st.slot.Render(key), bold.Render(dev.VPD.Fields[key])); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
