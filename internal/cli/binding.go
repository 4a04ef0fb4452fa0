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

	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/spf13/cobra"
)

// bindingCmd groups usage binding commands
var bindingCmd = &cobra.Command{
	Use:   "binding",
	Short: "Certificate usage binding operations",
	Long: `Read or change which client certificate a device consumer uses.

Usages: HTTPS, IEEE802.X, MQTT`,
}

// parseBindingUsage accepts only the usages a certificate can be bound to.
func parseBindingUsage(name string) (client.Usage, error) {
	usage, err := client.ParseUsage(name)
	if err != nil {
		return "", err
	}
	for _, u := range client.BindingUsages {
		if u == usage {
			return usage, nil
		}
	}
	return "", &client.PolicyError{Reason: fmt.Sprintf("usage %s cannot be bound to a certificate", usage)}
}

var bindingGetCmd = &cobra.Command{
	Use:   "get <usage>",
	Short: "Print the certificate bound to a usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		usage, err := parseBindingUsage(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			alias, err := s.client.GetUsageBinding(cmd.Context(), usage)
			if err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).PrintBinding(usage, alias)
		})
	},
}

var bindingSetCmd = &cobra.Command{
	Use:   "set <usage> <alias>",
	Short: "Bind a client certificate to a usage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		usage, err := parseBindingUsage(args[0])
		if err != nil {
			return err
		}
		alias := args[1]
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			printVerbose(cmd, "Binding %s to %s on %s", alias, usage, s.client.Host())
			if err := s.client.SetUsageBinding(cmd.Context(), alias, usage); err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).
				PrintSuccess(fmt.Sprintf("Certificate %s bound to %s", alias, usage))
		})
	},
}

func init() {
	bindingCmd.AddCommand(bindingGetCmd)
	bindingCmd.AddCommand(bindingSetCmd)
}
