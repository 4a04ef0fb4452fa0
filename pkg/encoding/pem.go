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

// Package encoding converts certificates, certificate signing requests and
// private keys between the encodings exchanged with cameras and the CA:
// PEM, base64 DER and raw DER.
package encoding

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// PEM block types
const (
	PEMTypeRSAPrivateKey       = "RSA PRIVATE KEY"
	PEMTypeECPrivateKey        = "EC PRIVATE KEY"
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypeCertificate         = "CERTIFICATE"
	PEMTypeCertificateRequest  = "CERTIFICATE REQUEST"
	PEMTypeNewCertificateReq   = "NEW CERTIFICATE REQUEST"
)

// EncodeCertificatePEM encodes an X.509 certificate as a single PEM block
// with the base64 body wrapped at 64 columns.
//
// Example:
//
//	pemCert, err := encoding.EncodeCertificatePEM(cert)
func EncodeCertificatePEM(cert *x509.Certificate) (string, error) {
	if cert == nil || len(cert.Raw) == 0 {
		return "", ErrInvalidCertificate
	}
	return EncodeDERCertificatePEM(cert.Raw), nil
}

// EncodeDERCertificatePEM wraps raw DER bytes in a CERTIFICATE PEM block.
func EncodeDERCertificatePEM(der []byte) string {
	var buf bytes.Buffer
	// pem.Encode only fails on writer errors; bytes.Buffer never returns one.
	_ = pem.Encode(&buf, &pem.Block{Type: PEMTypeCertificate, Bytes: der})
	return buf.String()
}

// DecodeCertificate parses a certificate given as PEM, base64 encoded DER
// or raw DER. Management jobs deliver certificates as base64 DER while
// operators usually paste PEM, so both are accepted.
//
// Example:
//
//	cert, err := encoding.DecodeCertificate(contents)
func DecodeCertificate(data []byte) (*x509.Certificate, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrInvalidData
	}

	if bytes.HasPrefix(trimmed, []byte("-----BEGIN")) {
		block, _ := pem.Decode(trimmed)
		if block == nil {
			return nil, ErrInvalidPEMEncoding
		}
		if block.Type != PEMTypeCertificate {
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidCertificate, block.Type)
		}
		return parseCertificate(block.Bytes)
	}

	if der, err := decodeBase64(trimmed); err == nil {
		return parseCertificate(der)
	}
	return parseCertificate(trimmed)
}

// DecodeCertificateChainPEM decodes PEM encoded data containing multiple
// certificates and returns them in order. Non-certificate blocks are skipped.
func DecodeCertificateChainPEM(data []byte) ([]*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	var certs []*x509.Certificate
	remaining := data
	for len(remaining) > 0 {
		var block *pem.Block
		block, remaining = pem.Decode(remaining)
		if block == nil {
			break
		}
		if block.Type != PEMTypeCertificate {
			continue
		}
		cert, err := parseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, ErrInvalidPEMEncoding
	}
	return certs, nil
}

// IsCA reports whether cert is a CA (trust) certificate. A certificate
// without a basic constraints extension is treated as an end-entity
// certificate; if that guess is wrong the device API rejects the request.
func IsCA(cert *x509.Certificate) bool {
	return cert != nil && cert.BasicConstraintsValid && cert.IsCA
}

// DecodeCSR parses a PEM encoded certificate signing request.
func DecodeCSR(data []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSR, ErrInvalidPEMEncoding)
	}
	if block.Type != PEMTypeCertificateRequest && block.Type != PEMTypeNewCertificateReq {
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidCSR, block.Type)
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSR, err)
	}
	return csr, nil
}

// ValidateCSR parses csrPEM and verifies its self-signature.
func ValidateCSR(csrPEM string) (*x509.CertificateRequest, error) {
	csr, err := DecodeCSR([]byte(csrPEM))
	if err != nil {
		return nil, err
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCSRSignature, err)
	}
	return csr, nil
}

// EncodeCSRPEM wraps raw CSR DER bytes in a CERTIFICATE REQUEST PEM block.
func EncodeCSRPEM(der []byte) string {
	var buf bytes.Buffer
	_ = pem.Encode(&buf, &pem.Block{Type: PEMTypeCertificateRequest, Bytes: der})
	return buf.String()
}

func parseCertificate(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return cert, nil
}

func decodeBase64(data []byte) ([]byte, error) {
	compact := strings.Join(strings.Fields(string(data)), "")
	return base64.StdEncoding.DecodeString(compact)
}
