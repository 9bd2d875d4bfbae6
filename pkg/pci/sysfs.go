// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultSysfsRoot is where the kernel exposes one directory per PCI
// function.
const DefaultSysfsRoot = "/sys/bus/pci/devices"

// Accessor yields the raw attribute exposure of the kernel's PCI device
// tree. It exists as an interface so tests can substitute a synthetic tree.
type Accessor interface {
	// ListDevices returns the address names of every visible device.
	ListDevices() ([]string, error)
	// ReadAttr returns the trimmed contents of a named attribute file.
	ReadAttr(addr, name string) (string, error)
	// ReadBinary returns the raw bytes of a binary resource such as the
	// config space or the VPD blob.
	ReadBinary(addr, name string) ([]byte, error)
	// ParentOf resolves the immediate upstream device of addr, if any.
	ParentOf(addr string) (string, bool)
	// HasFile reports whether a named attribute exists for addr.
	HasFile(addr, name string) bool
}

// SysfsAccessor reads the live sysfs tree.
type SysfsAccessor struct {
	Root string
}

// NewSysfsAccessor returns an accessor over root, or the kernel default
// when root is empty.
func NewSysfsAccessor(root string) *SysfsAccessor {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsAccessor{Root: root}
}

func (s *SysfsAccessor) ListDevices() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *SysfsAccessor) ReadAttr(addr, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, addr, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *SysfsAccessor) ReadBinary(addr, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, addr, name))
}

// ParentOf resolves the device symlink into the kernel device hierarchy and
// inspects the directory above. Top-level devices sit directly under a
// pciNNNN:NN bus directory, whose name does not parse as a device address.
func (s *SysfsAccessor) ParentOf(addr string) (string, bool) {
	devPath, err := filepath.EvalSymlinks(filepath.Join(s.Root, addr))
	if err != nil {
		return "", false
	}
	parent := filepath.Base(filepath.Dir(devPath))
	if _, err := ParseAddress(parent); err != nil {
		return "", false
	}
	return parent, true
}

func (s *SysfsAccessor) HasFile(addr, name string) bool {
	_, err := os.Stat(filepath.Join(s.Root, addr, name))
	return err == nil
}
