// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/host"
	"github.com/spf13/cobra"

	"gitlab.clyso.com/clyso/pciscan/pkg/pci"
)

// HostInfo is a small diagnostic report: when pciscan shows less than
// expected (no express types, no slots), the usual causes are missing
// privilege or a virtualized platform that exposes a minimal PCI tree.
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	KernelArch      string `json:"kernel_arch"`
	Virtualized     bool   `json:"virtualized"`
	SysVendor       string `json:"sys_vendor,omitempty"`
	PCIDevicesSeen  int    `json:"pci_devices_seen"`
	Root            bool   `json:"running_as_root"`
}

var hostInfoCmd = &cobra.Command{
	Use:   "host-info",
	Short: "Report host platform details relevant to PCI visibility",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := collectHostInfo()
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func collectHostInfo() (*HostInfo, error) {
	hi, err := host.Info()
	if err != nil {
		return nil, fmt.Errorf("reading host info: %w", err)
	}
	info := &HostInfo{
		Hostname:        hi.Hostname,
		OS:              hi.OS,
		Platform:        hi.Platform,
		PlatformVersion: hi.PlatformVersion,
		KernelVersion:   hi.KernelVersion,
		KernelArch:      hi.KernelArch,
		Root:            os.Geteuid() == 0,
	}
	info.SysVendor, info.Virtualized = sysVendor()
	if names, err := pci.NewSysfsAccessor("").ListDevices(); err == nil {
		info.PCIDevicesSeen = len(names)
	}
	return info, nil
}

// sysVendor reads the DMI system vendor and matches it against the usual
// hypervisor vendor strings.
func sysVendor() (string, bool) {
	raw, err := os.ReadFile("/sys/devices/virtual/dmi/id/sys_vendor")
	if err != nil {
		return "", false
	}
	vendor := strings.TrimSpace(string(raw))
	virtTech := []string{"VMware", "VirtualBox", "QEMU", "Xen", "KVM", "Microsoft Hyper-V", "Parallels", "Oracle VM Server"}
	for _, tech := range virtTech {
		if strings.Contains(vendor, tech) {
			return vendor, true
		}
	}
	return vendor, false
}
