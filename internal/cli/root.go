// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-axiscert.
//
// go-axiscert is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.


package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration
	globalConfig *Options
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "axiscert",
	Short: "axiscert CLI - Axis device certificate lifecycle tool",
	Long: `axiscert manages the certificates held by Axis network cameras:
inventory, trusted CA maintenance, reenrollment and usage bindings.

Every TLS connection validates the device identity against the private
PKI trust anchors (--trust-layout bundle|split, default bundle at
/etc/axiscert/Axis.Trust). A device that does not chain to them must pass
conventional validation against the system roots. --tls=false skips
identity validation entirely.

Usages:
  - HTTPS:     web server TLS certificate
  - IEEE802.X: 802.1X EAP-TLS client certificate
  - MQTT:      MQTT client certificate`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with code 1 on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		handleError(err)
	}
}

func init() {
	// Initialize global config
	globalConfig = NewOptions()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globalConfig.ConfigFile, "config", "",
		"config file (YAML); defaults and AXISCERT_* environment variables are used when empty")
	flags.String("host", "", "device address, optionally with a port")
	flags.Bool("tls", true, "connect to the device over https")
	flags.String("username", "", "device username or secret reference (env:, vault:, azkv:)")
	flags.String("password", "", "device password or secret reference (env:, vault:, azkv:)")
	flags.String("serial", "", "SERIALNUMBER the device identity certificate must carry")
	flags.Duration("timeout", 0, "per request timeout (e.g. 30s)")
	flags.String("trust-layout", "", "private PKI trust anchor layout (bundle, split)")
	flags.String("trust-bundle", "", "PEM bundle holding roots and intermediates")
	flags.String("trust-root", "", "PEM file holding the private root")
	flags.String("trust-intermediate", "", "PEM file holding private intermediates")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&globalConfig.OutputFormat, "output", "o", "text",
		"output format (text, json, table)")
	flags.BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"verbose output")

	// Flags take precedence over the config file and environment
	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("failed to bind flags: %v", err))
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(certsCmd)
	rootCmd.AddCommand(caCmd)
	rootCmd.AddCommand(keystoreCmd)
	rootCmd.AddCommand(bindingCmd)
	rootCmd.AddCommand(csrCmd)
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(reenrollCmd)
	rootCmd.AddCommand(signerCmd)
	rootCmd.AddCommand(keyTypeCmd)
	rootCmd.AddCommand(simulateCmd)
}

// getConfig returns the global configuration
func getConfig() *Options {
	return globalConfig
}

// handleError prints an error and exits with code 1
func handleError(err error) {
	printer := NewPrinter(globalConfig.OutputFormat, os.Stderr)
	_ = printer.PrintError(err) // Error printing to stderr is best-effort
	os.Exit(1)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cmd *cobra.Command, format string, args ...interface{}) {
	if globalConfig.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}
