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

package job

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
)

// DefaultValidity is the lifetime of certificates issued by a LocalSigner
// when none is configured.
const DefaultValidity = 365 * 24 * time.Hour

var ErrSignerConfig = errors.New("job: invalid signer configuration")

// LocalSigner issues device certificates from a CA key held by the
// orchestrator. It stands in for an enterprise CA when reenrolling.
type LocalSigner struct {
	cert     *x509.Certificate
	key      crypto.Signer
	validity time.Duration
	now      func() time.Time
}

// NewLocalSigner returns a signer issuing from cert and key. cert must be a
// CA certificate matching key.
func NewLocalSigner(cert *x509.Certificate, key crypto.Signer, validity time.Duration) (*LocalSigner, error) {
	if cert == nil || key == nil {
		return nil, fmt.Errorf("%w: CA certificate and key are required", ErrSignerConfig)
	}
	if !encoding.IsCA(cert) {
		return nil, fmt.Errorf("%w: %s is not a CA certificate", ErrSignerConfig, cert.Subject)
	}
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(cert.PublicKey) {
		return nil, fmt.Errorf("%w: key does not match CA certificate", ErrSignerConfig)
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &LocalSigner{cert: cert, key: key, validity: validity, now: time.Now}, nil
}

// LoadLocalSigner reads a CA certificate and a PKCS#8 key, optionally
// encrypted with password, from disk.
func LoadLocalSigner(certFile, keyFile string, password []byte, validity time.Duration) (*LocalSigner, error) {
	certData, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	cert, err := encoding.DecodeCertificate(certData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}
	keyData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA key: %w", err)
	}
	key, err := encoding.DecodePrivateKeyPEM(keyData, password)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA key: %w", err)
	}
	return NewLocalSigner(cert, key, validity)
}

// NewSelfSignedSigner generates a P-256 CA named commonName, valid for
// caValidity, and returns a signer issuing certificates valid for validity.
func NewSelfSignedSigner(commonName string, caValidity, validity time.Duration) (*LocalSigner, error) {
	if commonName == "" {
		return nil, fmt.Errorf("%w: CA common name is required", ErrSignerConfig)
	}
	if caValidity <= 0 {
		return nil, fmt.Errorf("%w: CA validity must be positive", ErrSignerConfig)
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return NewLocalSigner(cert, key, validity)
}

// Save writes the CA certificate and its PKCS#8 key to disk. The key is
// encrypted when password is not empty. Existing files are replaced.
func (s *LocalSigner) Save(certFile, keyFile string, password []byte) error {
	certPEM, err := encoding.EncodeCertificatePEM(s.cert)
	if err != nil {
		return err
	}
	keyPEM, err := encoding.EncodePrivateKeyPEM(s.key, password)
	if err != nil {
		return err
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write CA key: %w", err)
	}
	// #nosec G306 - the CA certificate is public
	if err := os.WriteFile(certFile, []byte(certPEM), 0o644); err != nil {
		return fmt.Errorf("failed to write CA certificate: %w", err)
	}
	return nil
}

// Certificate returns the issuing CA certificate.
func (s *LocalSigner) Certificate() *x509.Certificate {
	return s.cert
}

// Submit implements SubmitFunc. The issued certificate copies the subject
// and SANs of the CSR.
func (s *LocalSigner) Submit(ctx context.Context, csrPEM string) (*x509.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	csr, err := encoding.ValidateCSR(csrPEM)
	if err != nil {
		return nil, err
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	notBefore := s.now().Add(-5 * time.Minute)
	notAfter := notBefore.Add(s.validity)
	if notAfter.After(s.cert.NotAfter) {
		notAfter = s.cert.NotAfter
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               csr.Subject,
		DNSNames:              csr.DNSNames,
		IPAddresses:           csr.IPAddresses,
		URIs:                  csr.URIs,
		EmailAddresses:        csr.EmailAddresses,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, s.cert, csr.PublicKey, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to issue certificate: %w", err)
	}
	return x509.ParseCertificate(der)
}

func randomSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serial, nil
}
