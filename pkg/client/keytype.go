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

import "strings"

// KeyType is the key type string understood by the device when creating a
// self-signed certificate.
type KeyType string

const (
	KeyTypeRSA2048 KeyType = "RSA-2048"
	KeyTypeRSA4096 KeyType = "RSA-4096"
	KeyTypeECP256  KeyType = "EC-P256"
	KeyTypeECP384  KeyType = "EC-P384"
	KeyTypeECP521  KeyType = "EC-P521"

	// KeyTypeUnknown marks an unsupported algorithm and size pair. It is
	// never sent to a device.
	KeyTypeUnknown KeyType = "UNKNOWN"
)

type keySpec struct {
	algorithm string
	size      int
}

var keyTypes = map[keySpec]KeyType{
	{"RSA", 2048}: KeyTypeRSA2048,
	{"RSA", 4096}: KeyTypeRSA4096,
	{"ECC", 256}:  KeyTypeECP256,
	{"ECC", 384}:  KeyTypeECP384,
	{"ECC", 521}:  KeyTypeECP521,
}

// MapKeyType maps a CA key algorithm and size to the device key type.
// "EC", "ECC", "ECDSA" and "ECP" all name elliptic curve keys.
func MapKeyType(algorithm string, size int) KeyType {
	alg := strings.ToUpper(strings.TrimSpace(algorithm))
	switch alg {
	case "EC", "ECDSA", "ECP":
		alg = "ECC"
	}
	if kt, ok := keyTypes[keySpec{alg, size}]; ok {
		return kt
	}
	return KeyTypeUnknown
}

// Supported reports whether the key type can be sent to a device.
func (k KeyType) Supported() bool {
	for _, kt := range keyTypes {
		if k == kt {
			return true
		}
	}
	return false
}
