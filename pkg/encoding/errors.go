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

import "errors"

var (
	// ErrInvalidData is returned when input is nil, empty, or malformed
	ErrInvalidData = errors.New("encoding: invalid data")

	// ErrInvalidCertificate is returned when a certificate is nil or cannot be parsed
	ErrInvalidCertificate = errors.New("encoding: invalid certificate")

	// ErrInvalidPEMEncoding is returned when PEM decoding fails
	ErrInvalidPEMEncoding = errors.New("encoding: invalid PEM encoding")

	// ErrInvalidCSR is returned when a certificate signing request cannot be parsed
	ErrInvalidCSR = errors.New("encoding: invalid certificate signing request")

	// ErrCSRSignature is returned when a CSR is not signed by its own public key
	ErrCSRSignature = errors.New("encoding: CSR signature verification failed")

	// ErrInvalidPrivateKey is returned when a private key is nil or invalid
	ErrInvalidPrivateKey = errors.New("encoding: invalid private key")

	// ErrInvalidPassword is returned when a password is incorrect
	ErrInvalidPassword = errors.New("encoding: invalid password")

	// ErrPasswordRequired is returned when an encrypted key is decoded without a password
	ErrPasswordRequired = errors.New("encoding: password required")
)
