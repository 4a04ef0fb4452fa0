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
)

// caCmd groups trusted CA certificate commands
var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Trusted CA certificate operations",
	Long: `Manage the trusted CA certificates of the device. End-entity
certificates are never added or removed, and an alias already in use is
never overwritten.`,
}

var caListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the trusted CA certificates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			cas, err := s.client.ListCaCertificates(cmd.Context())
			if err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).PrintCACertificates(cas)
		})
	},
}

var caAddCmd = &cobra.Command{
	Use:   "add <alias> <cert-file>",
	Short: "Add a trusted CA certificate",
	Long: `Install the CA certificate in cert-file under alias. The file may
hold PEM, base64 DER or raw DER.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias, certFile := args[0], args[1]
		// #nosec G304 - certificate path is provided by the operator
		data, err := os.ReadFile(certFile)
		if err != nil {
			return fmt.Errorf("failed to read certificate: %w", err)
		}
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			printVerbose(cmd, "Adding CA certificate %s to %s", alias, s.client.Host())
			return printResult(cmd, s.runner.AddCA(cmd.Context(), s.client, alias, data))
		})
	},
}

var caRemoveCmd = &cobra.Command{
	Use:   "remove <alias>",
	Short: "Remove a trusted CA certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias := args[0]
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			printVerbose(cmd, "Removing CA certificate %s from %s", alias, s.client.Host())
			return printResult(cmd, s.runner.RemoveCA(cmd.Context(), s.client, alias))
		})
	},
}

func init() {
	caCmd.AddCommand(caListCmd)
	caCmd.AddCommand(caAddCmd)
	caCmd.AddCommand(caRemoveCmd)
}
