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

package client

// DeviceCertificate is a client certificate held by the device. Binding is
// not reported by the certificate API; it stays UsageUnbound until a
// binding lookup tags the certificate.
type DeviceCertificate struct {
	Alias    string   `json:"alias"`
	PEM      string   `json:"certificate"`
	Keystore Keystore `json:"keystore"`
	Binding  Usage    `json:"-"`
}

// CACertificate is a trusted CA certificate installed on the device.
type CACertificate struct {
	Alias string `json:"alias"`
	PEM   string `json:"certificate"`
}

// SelfSignedRequest describes a certificate the device generates with a
// fresh on-device key.
type SelfSignedRequest struct {
	Alias    string   `json:"alias"`
	KeyType  KeyType  `json:"key_type"`
	Keystore Keystore `json:"keystore"`
	Subject  string   `json:"subject"`
	SANs     []string `json:"subject_alt_names"`
	// Validity is left to the issuing CA's certificate template.
	ValidFrom int `json:"valid_from"`
	ValidTo   int `json:"valid_to"`
}

type dataWrapper struct {
	Data any `json:"data"`
}

type certificateBody struct {
	Alias       string `json:"alias,omitempty"`
	Certificate string `json:"certificate"`
}
