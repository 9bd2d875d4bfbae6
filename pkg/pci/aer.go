// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"strconv"
	"strings"
)

// AERStats holds the Advanced Error Reporting counters the kernel exposes
// per device, plus the aggregate counts kept by root ports.
type AERStats struct {
	Device   map[string]map[string]int64 `json:"device,omitempty"`
	RootPort map[string]int64            `json:"rootport,omitempty"`
}

var aerDeviceAttrs = []string{
	"aer_dev_correctable",
	"aer_dev_fatal",
	"aer_dev_nonfatal",
}

var aerRootPortAttrs = []string{
	"aer_rootport_total_err_cor",
	"aer_rootport_total_err_fatal",
	"aer_rootport_total_err_nonfatal",
}

// readAER gathers AER statistics for one device. Non-PCIe devices and
// kernels without the aer_* attributes yield nil.
func readAER(acc Accessor, name string, expType ExpressType) *AERStats {
	if expType == "" {
		return nil
	}
	stats := &AERStats{}
	for _, attr := range aerDeviceAttrs {
		raw, err := acc.ReadAttr(name, attr)
		if err != nil {
			continue
		}
		// Each line is an error class and its count, e.g. "BadTLP 0".
		counters := map[string]int64{}
		for _, line := range strings.Split(raw, "\n") {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				continue
			}
			if v, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				counters[fields[0]] = v
			}
		}
		if stats.Device == nil {
			stats.Device = map[string]map[string]int64{}
		}
		stats.Device[attr] = counters
	}
	if expType == RootPort {
		for _, attr := range aerRootPortAttrs {
			raw, err := acc.ReadAttr(name, attr)
			if err != nil {
				continue
			}
			v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				continue
			}
			if stats.RootPort == nil {
				stats.RootPort = map[string]int64{}
			}
			stats.RootPort[attr] = v
		}
	}
	if stats.Device == nil && stats.RootPort == nil {
		return nil
	}
	return stats
}
