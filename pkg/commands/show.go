// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gitlab.clyso.com/clyso/pciscan/pkg/config"
	"gitlab.clyso.com/clyso/pciscan/pkg/pci"
	"gitlab.clyso.com/clyso/pciscan/pkg/render"
)

var (
	showConfigFile  string
	showSysfsRoot   string
	showJSON        bool
	showHexify      bool
	showTree        bool
	showDevice      string
	showClassID     string
	showAddr        string
	showIncludePath bool
	showExpressOnly bool
	showVPD         bool
	showAER         bool
	showPhysFnOnly  bool
	showNoBuiltin   bool
	showNoColor     bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display, filter and export PCI device and topology information",
}

func init() {
	showCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runShow()
	}
	f := showCmd.Flags()
	f.StringVar(&showConfigFile, "config", "", "Optional config file with defaults and extra class aliases")
	f.StringVar(&showSysfsRoot, "sysfs-root", "", "PCI sysfs directory (default "+pci.DefaultSysfsRoot+")")
	f.BoolVarP(&showJSON, "json", "j", false, "Output in JSON format")
	f.BoolVarP(&showHexify, "hexify", "x", false, "Output vendor/device/class IDs as hex strings instead of numbers in JSON output")
	f.BoolVarP(&showTree, "tree", "t", false, "Output as a tree")
	f.StringVarP(&showDevice, "device", "d", "", "Only show devices matching this PCI vendor/device ID (vendor:device or vendor:, in hex)")
	f.StringVarP(&showClassID, "class-id", "c", "", "Only show devices matching this PCI class ID in hex, or one of: "+strings.Join(pci.ClassAliasNames(), ", "))
	f.StringVarP(&showAddr, "addr", "s", "", "Show device with this PCI address")
	f.BoolVarP(&showIncludePath, "include-path", "p", false, "Include devices upstream of matched devices")
	f.BoolVarP(&showExpressOnly, "express-only", "e", false, "Only show PCIe devices")
	f.BoolVarP(&showVPD, "vpd", "V", false, "Include VPD data if present, does not work with --tree")
	f.BoolVarP(&showAER, "aer", "a", false, "Include PCIe Advanced Error Reporting (AER) information when available - only provided in JSON output")
	f.BoolVar(&showPhysFnOnly, "physfn-only", false, "Show only PFs if SR-IOV is enabled")
	f.BoolVar(&showNoBuiltin, "no-builtin", false, "Exclude builtin root devices (implied by --tree)")
	f.BoolVar(&showNoColor, "no-color", false, "Disable colored output")
}

func runShow() error {
	cfg := &config.Config{}
	if showConfigFile != "" {
		loaded, err := config.Load(showConfigFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	extraAliases, err := cfg.ResolveAliases()
	if err != nil {
		return err
	}

	sysfsRoot := showSysfsRoot
	if sysfsRoot == "" {
		sysfsRoot = getEnv("PCISCAN_SYSFS_ROOT", cfg.SysfsRoot)
	}
	jsonOut := showJSON || (!flagChanged(showCmd, "json") && cfg.JSON)
	hexify := showHexify || cfg.Hexify
	noColor := showNoColor || cfg.NoColor || !getEnvBool("CLICOLOR", true)

	filter, err := buildFilter(extraAliases)
	if err != nil {
		return err
	}
	// The tree view needs the upstream chain of every match to draw
	// anything sensible, and never shows childless builtin devices.
	filter.IncludePath = showIncludePath || showTree
	filter.NoBuiltin = showNoBuiltin || showTree

	acc := pci.NewSysfsAccessor(sysfsRoot)
	scanOpts := pci.ScanOptions{
		IncludeVPD: showVPD,
		IncludeAER: showAER,
		SlotNames:  pci.DMISlots(),
	}
	if showVPD && !jsonOut && term.IsTerminal(int(os.Stderr.Fd())) {
		// VPD reads are privileged and slow, several seconds on boxes
		// with many NVMe drives.
		var bar *progressbar.ProgressBar
		scanOpts.OnDevice = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("reading vpd"),
				)
			}
			_ = bar.Set(done)
			if done == total {
				_ = bar.Finish()
			}
		}
	}

	devices, err := pci.Scan(acc, scanOpts)
	if err != nil {
		return err
	}
	forest, err := pci.BuildForest(devices)
	if err != nil {
		return err
	}
	if filter.Addr != nil && forest.Node(*filter.Addr) == nil {
		return fmt.Errorf("could not open PCI device %s", filter.Addr)
	}

	sel := pci.Apply(forest, filter)
	log.Info().
		Int("devices", forest.Len()).
		Int("selected", len(sel.Devices)).
		Int("matched", len(sel.Matched)).
		Msg("snapshot filtered")

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	renderOpts := render.Options{
		Hexify:      hexify,
		VPD:         showVPD,
		AER:         showAER,
		MarkMatches: showIncludePath,
		Color:       isTTY && !noColor,
		SlotNames:   scanOpts.SlotNames,
	}

	switch {
	case jsonOut:
		return render.JSON(os.Stdout, sel, renderOpts)
	case showTree:
		warnScripting(isTTY)
		return render.Tree(os.Stdout, sel, renderOpts)
	default:
		warnScripting(isTTY)
		return render.Flat(os.Stdout, sel, renderOpts)
	}
}

func buildFilter(extraAliases map[string]pci.ClassMatch) (pci.Filter, error) {
	filter := pci.Filter{
		ExpressOnly: showExpressOnly,
		PhysFnOnly:  showPhysFnOnly,
	}
	if showDevice != "" {
		vendorStr, deviceStr, ok := strings.Cut(showDevice, ":")
		if !ok {
			return filter, fmt.Errorf("could not parse vendor/device id %q: expected vendor:device or vendor:", showDevice)
		}
		vendor, err := strconv.ParseUint(vendorStr, 16, 16)
		if err != nil {
			return filter, fmt.Errorf("could not parse vendor id %q: %w", vendorStr, err)
		}
		vid := pci.ID(vendor)
		filter.VendorID = &vid
		if deviceStr != "" {
			device, err := strconv.ParseUint(deviceStr, 16, 16)
			if err != nil {
				return filter, fmt.Errorf("could not parse device id %q: %w", deviceStr, err)
			}
			did := pci.ID(device)
			filter.DeviceID = &did
		}
	}
	if showClassID != "" {
		match, err := pci.ResolveClass(showClassID, extraAliases)
		if err != nil {
			return filter, err
		}
		filter.Class = &match
	}
	if showAddr != "" {
		addr, err := pci.ParseAddress(showAddr)
		if err != nil {
			return filter, err
		}
		filter.Addr = &addr
	}
	return filter, nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	return cmd.Flags().Changed(name)
}

// warnScripting nudges script authors towards --json; human output has no
// stability guarantees.
func warnScripting(isTTY bool) {
	if isTTY {
		return
	}
	warning := "It looks like you may be writing a script that uses pciscan. " +
		"Please always use the --json flag from scripts, do NOT parse output intended for humans!"
	fmt.Println(warning)
	fmt.Fprintln(os.Stderr, warning)
}
