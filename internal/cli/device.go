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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeremyhahn/go-axiscert/pkg/health"
	"github.com/jeremyhahn/go-axiscert/pkg/job"
	"github.com/spf13/cobra"
)

// ErrJobFailed is returned by job commands whose result is a failure. The
// result itself has already been printed.
var ErrJobFailed = errors.New("job failed")

// ErrUnhealthy is returned by the health command when any device API
// check fails.
var ErrUnhealthy = errors.New("device is not healthy")

// printResult prints a job result and converts a failure to ErrJobFailed.
func printResult(cmd *cobra.Command, result *job.Result) error {
	printer := NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout())
	if err := printer.PrintResult(result); err != nil {
		return err
	}
	if result.Status == job.StatusFailure {
		return fmt.Errorf("%w: %s", ErrJobFailed, result.Message)
	}
	return nil
}

// connectCmd opens a session with the device
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Validate the device identity and credentials",
	Long: `Open a session with the device. Over TLS the device identity
certificate is validated before any credential is sent.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			printVerbose(cmd, "Connecting to %s", s.client.Host())
			if err := s.client.Connect(cmd.Context()); err != nil {
				return err
			}
			printer := NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout())
			return printer.PrintSuccess(fmt.Sprintf("Connected to %s", s.client.Host()))
		})
	},
}

// healthCmd probes each device API
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the certificate, web service and MQTT APIs of the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			checker := health.NewChecker()
			checker.DeviceChecks(s.client)
			printVerbose(cmd, "Running checks: %s", strings.Join(checker.GetAllChecks(), ", "))
			report := checker.Run(cmd.Context())
			if err := NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).PrintHealth(report); err != nil {
				return err
			}
			if report.Status != health.StatusHealthy {
				return fmt.Errorf("%w: %s", ErrUnhealthy, report.Status)
			}
			return nil
		})
	},
}

// inventoryCmd lists every certificate on the device with its usage
var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Inventory the device certificates",
	Long: `List the trusted CA certificates and client certificates held by
the device, tagging each client certificate with the usage it is bound to.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			return printResult(cmd, s.runner.Inventory(cmd.Context(), s.client))
		})
	},
}

// certsCmd groups client certificate commands
var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Client certificate operations",
}

var certsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the client certificates held by the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			certs, err := s.client.ListCertificates(cmd.Context())
			if err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).PrintCertificates(certs)
		})
	},
}

// keystoreCmd prints the default keystore
var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "Print the keystore new keys are created in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			keystore, err := s.client.GetDefaultKeystore(cmd.Context())
			if err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).PrintKeystore(keystore)
		})
	},
}

// csrCmd fetches a CSR for an on-device key
var csrCmd = &cobra.Command{
	Use:   "csr <alias>",
	Short: "Obtain a certificate signing request for a device key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias := args[0]
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			csr, err := s.client.ObtainCsr(cmd.Context(), alias)
			if err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).PrintCSR(alias, csr)
		})
	},
}

// replaceCmd installs an issued certificate over a device certificate
var replaceCmd = &cobra.Command{
	Use:   "replace <alias> <cert-file>",
	Short: "Replace a device certificate with an issued certificate",
	Long: `Replace the certificate stored under alias with the PEM certificate
in cert-file. The certificate must carry the public key of the on-device key.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias, certFile := args[0], args[1]
		// #nosec G304 - certificate path is provided by the operator
		data, err := os.ReadFile(certFile)
		if err != nil {
			return fmt.Errorf("failed to read certificate: %w", err)
		}
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			printVerbose(cmd, "Replacing %s on %s", alias, s.client.Host())
			if err := s.client.ReplaceCertificate(cmd.Context(), alias, string(data)); err != nil {
				return err
			}
			return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).
				PrintSuccess(fmt.Sprintf("Certificate %s replaced", alias))
		})
	},
}

func init() {
	certsCmd.AddCommand(certsListCmd)
}
