// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var verbosity string

var rootCmd = &cobra.Command{
	Use:   "pciscan",
	Short: "CLI for PCI/PCIe device and topology inspection",
	Long: "A CLI tool to display, filter and export information about PCI and PCI Express\n" +
		"devices and their bus topology. Run as root to decode privileged sysfs entries.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setUpLogs(verbosity)
	},
	// Bare `pciscan` behaves like `pciscan show` with default flags.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", zerolog.WarnLevel.String(), "Log level (debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(hostInfoCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// setUpLogs configures the global logger. Log events go to stderr so stdout
// stays machine-parseable; every run gets a fresh run ID for correlating
// warnings with a specific snapshot.
func setUpLogs(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(os.Stderr).With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
