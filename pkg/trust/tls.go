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
	"crypto/tls"
	"crypto/x509"
	"net"
)

// TLSConfig returns a client TLS configuration that validates the device
// identity with v during the handshake. host is the address dialed (a port
// is ignored) and is used only for the conventional fallback. Reasons for a
// rejected handshake are also recorded in errCtx when it is not nil.
func (v *Verifier) TLSConfig(host, expectedSerial string, errCtx *ErrorContext) *tls.Config {
	// #nosec G402 - peer verification is performed by VerifyConnection
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true,
		VerifyConnection:   v.VerifyConnection(host, expectedSerial, errCtx),
	}
}

// VerifyConnection returns a tls.Config.VerifyConnection callback.
func (v *Verifier) VerifyConnection(host, expectedSerial string, errCtx *ErrorContext) func(tls.ConnectionState) error {
	hostname := hostOnly(host)
	return func(cs tls.ConnectionState) error {
		var leaf *x509.Certificate
		if len(cs.PeerCertificates) > 0 {
			leaf = cs.PeerCertificates[0]
		}
		policy := EvaluatePolicy(cs.PeerCertificates, hostname, v.systemRoots, v.now())

		result := v.Validate(leaf, cs.PeerCertificates, policy, expectedSerial)
		if result.OK() {
			return nil
		}
		if errCtx != nil {
			errCtx.AddAll(result.Messages())
		}
		return result.Err()
	}
}

func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
