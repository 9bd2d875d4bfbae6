// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// DMISlots maps PCI addresses to the slot designations reported by the
// platform firmware, via `dmidecode -t slot`. Firmware data is best-effort:
// a missing dmidecode binary, missing privilege or malformed output all
// yield an empty map.
func DMISlots() map[string]string {
	path, err := exec.LookPath("dmidecode")
	if err != nil {
		return nil
	}
	out, err := exec.Command(path, "-t", "slot").Output()
	if err != nil {
		log.Debug().Err(err).Msg("dmidecode not usable, slot designations unavailable")
		return nil
	}
	return parseDMISlots(string(out))
}

// parseDMISlots extracts "Bus Address" -> "Designation" pairs from the
// System Slot Information blocks of dmidecode output.
func parseDMISlots(out string) map[string]string {
	slots := map[string]string{}
	var busAddr, designation string
	flush := func() {
		if busAddr != "" && designation != "" {
			slots[strings.ToLower(busAddr)] = designation
		}
		busAddr, designation = "", ""
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "System Slot Information" {
			flush()
			continue
		}
		if k, v, ok := strings.Cut(line, ": "); ok {
			switch k {
			case "Designation":
				designation = strings.TrimSpace(v)
			case "Bus Address":
				busAddr = strings.TrimSpace(v)
			}
		}
	}
	flush()
	return slots
}
