// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

// Package config loads the optional pciscan configuration file. Everything
// in it is a default; command-line flags and environment variables win.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"gitlab.clyso.com/clyso/pciscan/pkg/pci"
)

type Config struct {
	// SysfsRoot overrides the kernel PCI device directory, mostly useful
	// against captured sysfs trees.
	SysfsRoot string `mapstructure:"sysfs_root"`
	// JSON/Hexify/NoColor set default output behavior.
	JSON    bool `mapstructure:"json"`
	Hexify  bool `mapstructure:"hexify"`
	NoColor bool `mapstructure:"no_color"`
	// ClassAliases maps extra alias names to hex class codes, matched
	// exactly (full 24-bit mask).
	ClassAliases map[string]string `mapstructure:"class_aliases"`
}

// Load reads and decodes the config file at path.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}

// ResolveAliases converts the configured alias table into class matches.
func (c *Config) ResolveAliases() (map[string]pci.ClassMatch, error) {
	if len(c.ClassAliases) == 0 {
		return nil, nil
	}
	aliases := make(map[string]pci.ClassMatch, len(c.ClassAliases))
	for name, code := range c.ClassAliases {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(code), "0x"), 16, 24)
		if err != nil {
			return nil, fmt.Errorf("class alias %q: invalid class code %q: %w", name, code, err)
		}
		aliases[strings.ToLower(name)] = pci.ClassMatch{Code: uint32(v), Mask: 0xffffff}
	}
	return aliases, nil
}
