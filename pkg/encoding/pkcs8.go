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

package encoding

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"
)

// EncodePrivateKeyPEM encodes a private key as PKCS#8 PEM. A non-empty
// password produces an ENCRYPTED PRIVATE KEY block.
//
// Example:
//
//	pemData, err := encoding.EncodePrivateKeyPEM(caKey, []byte("changeit"))
func EncodePrivateKeyPEM(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}
	if len(password) == 0 {
		password = nil
	}

	der, err := pkcs8.MarshalPrivateKey(privateKey, password, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PKCS#8: %w", err)
	}

	blockType := PEMTypePrivateKey
	if len(password) > 0 {
		blockType = PEMTypeEncryptedPrivateKey
	}

	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return nil, fmt.Errorf("failed to encode PEM: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePrivateKeyPEM decodes a PEM private key into a crypto.Signer.
// PKCS#8 (plain or encrypted), PKCS#1 RSA and SEC 1 EC keys are accepted.
//
// Example:
//
//	signer, err := encoding.DecodePrivateKeyPEM(pemData, []byte("changeit"))
func DecodePrivateKeyPEM(data []byte, password []byte) (crypto.Signer, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEMEncoding
	}

	var (
		key any
		err error
	)
	switch block.Type {
	case PEMTypeRSAPrivateKey:
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case PEMTypeECPrivateKey:
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case PEMTypeEncryptedPrivateKey:
		if len(password) == 0 {
			return nil, ErrPasswordRequired
		}
		key, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
	case PEMTypePrivateKey:
		key, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidPrivateKey, block.Type)
	}
	if err != nil {
		if block.Type == PEMTypeEncryptedPrivateKey && isPasswordError(err) {
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a signer", ErrInvalidPrivateKey, key)
	}
	return signer, nil
}

// isPasswordError checks if an error is related to an incorrect password.
// The pkcs8 package reports a bad password in several different ways.
func isPasswordError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, hint := range []string{
		"incorrect password",
		"asn1: structure error",
		"tags don't match",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
