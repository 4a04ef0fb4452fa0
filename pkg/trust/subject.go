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

package trust

import (
	"crypto/x509"
	"fmt"
	"strings"
)

// SerialNumberAttribute is the subject DN attribute carrying the device serial.
const SerialNumberAttribute = "SERIALNUMBER"

var attributeNames = map[string]string{
	"2.5.4.3":                    "CN",
	"2.5.4.4":                    "SN",
	"2.5.4.5":                    SerialNumberAttribute,
	"2.5.4.6":                    "C",
	"2.5.4.7":                    "L",
	"2.5.4.8":                    "S",
	"2.5.4.9":                    "STREET",
	"2.5.4.10":                   "O",
	"2.5.4.11":                   "OU",
	"2.5.4.12":                   "T",
	"2.5.4.17":                   "PostalCode",
	"2.5.4.42":                   "G",
	"1.2.840.113549.1.9.1":       "E",
	"0.9.2342.19200300.100.1.1":  "UID",
	"0.9.2342.19200300.100.1.25": "DC",
}

// SubjectLines renders the subject distinguished name of cert with one
// attribute per line, in encoded order. Each value of a multi-valued RDN gets
// its own line.
func SubjectLines(cert *x509.Certificate) []string {
	lines := make([]string, 0, len(cert.Subject.Names))
	for _, atv := range cert.Subject.Names {
		oid := atv.Type.String()
		name, ok := attributeNames[oid]
		if !ok {
			name = "OID." + oid
		}
		lines = append(lines, fmt.Sprintf("%s=%v", name, atv.Value))
	}
	return lines
}

// FindAttribute returns the value of the first line starting with
// "<name>=". The match is case-sensitive. Surrounding whitespace is trimmed
// from the returned value, so callers compare the trimmed value byte for
// byte.
func FindAttribute(lines []string, name string) (string, bool) {
	prefix := name + "="
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	return "", false
}
