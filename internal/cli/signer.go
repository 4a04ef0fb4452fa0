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
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/job"
	"github.com/jeremyhahn/go-axiscert/pkg/pam"
	"github.com/spf13/cobra"
)

var (
	signerCommonName string
	signerCADays     int
	signerCertOut    string
	signerKeyOut     string
	signerForce      bool
)

// signerCmd manages the local signing CA used by reenroll
var signerCmd = &cobra.Command{
	Use:   "signer",
	Short: "Manage the local signing CA",
}

var signerInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a local signing CA for reenrollment",
	Long: `Generate a P-256 CA certificate and key for reenroll. The files are
written to signer.cert_file and signer.key_file unless --ca-cert and
--ca-key are given. The key is encrypted with signer.key_password when
one is configured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		certFile, keyFile := cfg.Signer.CertFile, cfg.Signer.KeyFile
		if signerCertOut != "" {
			certFile = signerCertOut
		}
		if signerKeyOut != "" {
			keyFile = signerKeyOut
		}
		if certFile == "" || keyFile == "" {
			return fmt.Errorf("%w: output files are required (--ca-cert, --ca-key)", job.ErrSignerConfig)
		}
		if !signerForce {
			for _, path := range []string{certFile, keyFile} {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%w: %s already exists (use --force to replace it)", job.ErrSignerConfig, path)
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}
		}

		resolver, err := cfg.Secrets.NewResolver()
		if err != nil {
			return fmt.Errorf("failed to create secret resolver: %w", err)
		}
		password, err := pam.ResolveField(cmd.Context(), resolver, "signer.key_password", cfg.Signer.KeyPassword)
		if err != nil {
			return err
		}

		validity := time.Duration(cfg.Signer.ValidityDays) * 24 * time.Hour
		signer, err := job.NewSelfSignedSigner(signerCommonName, time.Duration(signerCADays)*24*time.Hour, validity)
		if err != nil {
			return err
		}
		if err := signer.Save(certFile, keyFile, []byte(password)); err != nil {
			return err
		}
		printVerbose(cmd, "CA key encrypted: %t", password != "")
		return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout()).
			PrintSuccess(fmt.Sprintf("Created signing CA %q (%s, %s)", signerCommonName, certFile, keyFile))
	},
}

func init() {
	signerInitCmd.Flags().StringVar(&signerCommonName, "cn", "axiscert Issuing CA", "CA common name")
	signerInitCmd.Flags().IntVar(&signerCADays, "ca-days", 3650, "CA certificate lifetime in days")
	signerInitCmd.Flags().StringVar(&signerCertOut, "ca-cert", "", "CA certificate output (overrides signer.cert_file)")
	signerInitCmd.Flags().StringVar(&signerKeyOut, "ca-key", "", "CA key output (overrides signer.key_file)")
	signerInitCmd.Flags().BoolVar(&signerForce, "force", false, "replace existing files")

	signerCmd.AddCommand(signerInitCmd)
}
