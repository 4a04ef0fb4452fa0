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

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ParseTLSVersion converts a version name to a tls version constant. Only
// versions a camera client may negotiate are accepted.
func ParseTLSVersion(version string) (uint16, error) {
	switch version {
	case "TLS1.2", "1.2":
		return tls.VersionTLS12, nil
	case "TLS1.3", "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version: %s (must be TLS1.2 or TLS1.3)", version)
	}
}

// SystemRoots returns the pool used for the conventional chain check: the
// configured CA files, or nil to select the host's system pool.
func (t TrustConfig) SystemRoots() (*x509.CertPool, error) {
	if len(t.SystemCAFiles) == 0 {
		return nil, nil
	}
	return loadCertPool(t.SystemCAFiles)
}

// loadCertPool loads CA certificates into a cert pool
func loadCertPool(caFiles []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, caPath := range caFiles {
		// #nosec G304 - CA file paths from trusted config
		caCert, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", caPath, err)
		}
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", caPath)
		}
	}
	return pool, nil
}
