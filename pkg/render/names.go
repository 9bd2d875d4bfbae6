// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"

	"github.com/siderolabs/go-pcidb/pkg/pcidb"

	"gitlab.clyso.com/clyso/pciscan/pkg/pci"
)

// DeviceName returns a human-readable vendor/product label from the PCI ID
// database, falling back to the raw hex IDs for unknown hardware.
func DeviceName(dev *pci.Device) string {
	vendorID := uint16(dev.VendorID)
	productID := uint16(dev.DeviceID)
	vendor, vok := pcidb.LookupVendor(vendorID)
	product, pok := pcidb.LookupProduct(vendorID, productID)
	switch {
	case vok && pok:
		return fmt.Sprintf("%s (%04x) %s (%04x)", vendor, vendorID, product, productID)
	case vok:
		return fmt.Sprintf("%s (%04x), device %04x", vendor, vendorID, productID)
	default:
		return fmt.Sprintf("%04x:%04x", vendorID, productID)
	}
}
