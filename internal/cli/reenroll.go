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
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/jeremyhahn/go-axiscert/pkg/job"
	"github.com/jeremyhahn/go-axiscert/pkg/pam"
	"github.com/spf13/cobra"
)

var (
	reenrollSubject      string
	reenrollUsage        string
	reenrollKeyAlgorithm string
	reenrollKeySize      int
	reenrollSANs         []string
	reenrollCACert       string
	reenrollCAKey        string
)

// reenrollCmd generates a new device key and installs a certificate
// issued by the local signing CA
var reenrollCmd = &cobra.Command{
	Use:   "reenroll <alias>",
	Short: "Generate a new device key and certificate",
	Long: `Have the device generate a new key and self-signed certificate under
alias, sign the device CSR with the local CA, replace the self-signed
certificate with the issued one and bind it to the usage.

The key type defaults to the algorithm and size of the CA key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alias := args[0]
		usage, err := client.ParseUsage(reenrollUsage)
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), cmd.ErrOrStderr(), func(s *session) error {
			signer, err := loadSigner(cmd, s)
			if err != nil {
				return err
			}

			req := job.ReenrollRequest{
				Alias:        alias,
				Subject:      reenrollSubject,
				Usage:        usage,
				KeyAlgorithm: reenrollKeyAlgorithm,
				KeySize:      reenrollKeySize,
				SANs:         reenrollSANs,
			}
			if req.Subject == "" {
				req.Subject = "CN=" + alias
			}
			if req.KeyAlgorithm == "" {
				req.KeyAlgorithm, req.KeySize = keySpec(signer.Certificate())
			}
			printVerbose(cmd, "Reenrolling %s on %s with a %s-%d key", alias, s.client.Host(), req.KeyAlgorithm, req.KeySize)
			return printResult(cmd, s.runner.Reenroll(cmd.Context(), s.client, req, signer.Submit))
		})
	},
}

// loadSigner loads the local signing CA from the flags, falling back to
// the signer configuration. The key password may be a secret reference.
func loadSigner(cmd *cobra.Command, s *session) (*job.LocalSigner, error) {
	certFile, keyFile := s.cfg.Signer.CertFile, s.cfg.Signer.KeyFile
	if reenrollCACert != "" {
		certFile = reenrollCACert
	}
	if reenrollCAKey != "" {
		keyFile = reenrollCAKey
	}
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("%w: a CA certificate and key are required (--ca-cert, --ca-key)", job.ErrSignerConfig)
	}

	password, err := pam.ResolveField(cmd.Context(), s.resolver, "signer.key_password", s.cfg.Signer.KeyPassword)
	if err != nil {
		return nil, err
	}
	var pw []byte
	if password != "" {
		pw = []byte(password)
	}
	validity := time.Duration(s.cfg.Signer.ValidityDays) * 24 * time.Hour
	return job.LoadLocalSigner(certFile, keyFile, pw, validity)
}

// keySpec returns the algorithm and size of the certificate public key in
// the form the key type map expects.
func keySpec(cert *x509.Certificate) (string, int) {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return "RSA", pub.N.BitLen()
	case *ecdsa.PublicKey:
		return "ECC", pub.Curve.Params().BitSize
	default:
		return cert.PublicKeyAlgorithm.String(), 0
	}
}

func init() {
	reenrollCmd.Flags().StringVar(&reenrollSubject, "subject", "",
		"certificate subject (default: CN=<alias>)")
	reenrollCmd.Flags().StringVar(&reenrollUsage, "usage", string(client.UsageHTTPS),
		"usage to bind the certificate to (HTTPS, IEEE802.X, MQTT, Other)")
	reenrollCmd.Flags().StringVar(&reenrollKeyAlgorithm, "key-algorithm", "",
		"device key algorithm (RSA, ECC); defaults to the CA key algorithm")
	reenrollCmd.Flags().IntVar(&reenrollKeySize, "key-size", 0,
		"device key size in bits")
	reenrollCmd.Flags().StringSliceVar(&reenrollSANs, "san", nil,
		"subject alternative name (repeatable)")
	reenrollCmd.Flags().StringVar(&reenrollCACert, "ca-cert", "",
		"signing CA certificate (overrides signer.cert_file)")
	reenrollCmd.Flags().StringVar(&reenrollCAKey, "ca-key", "",
		"signing CA private key (overrides signer.key_file)")
}
