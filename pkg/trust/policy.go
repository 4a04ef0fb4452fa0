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
	"errors"
	"fmt"
	"strings"
	"time"
)

// PolicyErrors are the conventional TLS validation failures observed for a
// connection. Several flags can be set at once.
type PolicyErrors uint8

// PolicyNone means conventional validation succeeded.
const PolicyNone PolicyErrors = 0

const (
	// PolicyRemoteCertificateNotAvailable means the server sent no certificate.
	PolicyRemoteCertificateNotAvailable PolicyErrors = 1 << iota
	// PolicyRemoteCertificateNameMismatch means the hostname matches neither CN nor SAN.
	PolicyRemoteCertificateNameMismatch
	// PolicyRemoteCertificateChainErrors means the chain does not verify against the system roots.
	PolicyRemoteCertificateChainErrors
)

// Has reports whether flag is set.
func (p PolicyErrors) Has(flag PolicyErrors) bool {
	return p&flag != 0
}

func (p PolicyErrors) String() string {
	if p == PolicyNone {
		return "None"
	}
	var names []string
	if p.Has(PolicyRemoteCertificateNotAvailable) {
		names = append(names, "RemoteCertificateNotAvailable")
	}
	if p.Has(PolicyRemoteCertificateNameMismatch) {
		names = append(names, "RemoteCertificateNameMismatch")
	}
	if p.Has(PolicyRemoteCertificateChainErrors) {
		names = append(names, "RemoteCertificateChainErrors")
	}
	return strings.Join(names, "|")
}

// Fallback failure reasons.
const (
	ReasonValidationFailed      = "TLS certificate validation failed"
	ReasonCertificateNotPresent = "the server did not provide a certificate"
	ReasonNameMismatch          = "the device hostname does not match the CN or SAN in the server's TLS certificate"
	ReasonChainInvalid          = "certificate chain is not valid"
	ReasonChainNotBuilt         = "could not build the certificate chain"
)

// EvaluatePolicy computes the conventional TLS policy errors for the
// certificates presented by a server, using roots (nil for the system pool).
func EvaluatePolicy(presented []*x509.Certificate, host string, roots *x509.CertPool, now time.Time) PolicyErrors {
	if len(presented) == 0 || presented[0] == nil {
		return PolicyRemoteCertificateNotAvailable
	}

	leaf := presented[0]
	policy := PolicyNone
	if host != "" {
		if err := leaf.VerifyHostname(host); err != nil {
			policy |= PolicyRemoteCertificateNameMismatch
		}
	}
	if _, err := leaf.Verify(verifyOptions(presented, roots, now)); err != nil {
		policy |= PolicyRemoteCertificateChainErrors
	}
	return policy
}

// ChainStatus is one entry describing why a chain failed system validation.
type ChainStatus struct {
	Status string
	Info   string
}

func (s ChainStatus) String() string {
	return fmt.Sprintf("chain status: %s - %s", s.Status, s.Info)
}

// SystemChainStatus rebuilds the presented chain against roots and reports
// whether it built, together with every per-certificate status entry.
func SystemChainStatus(presented []*x509.Certificate, roots *x509.CertPool, now time.Time) (bool, []ChainStatus) {
	if len(presented) == 0 || presented[0] == nil {
		return false, []ChainStatus{{Status: "NoCertificate", Info: "no certificate was presented"}}
	}

	var statuses []ChainStatus
	for _, cert := range presented {
		if cert == nil {
			continue
		}
		switch {
		case now.After(cert.NotAfter):
			statuses = append(statuses, ChainStatus{
				Status: "NotTimeValid",
				Info:   fmt.Sprintf("'%s' expired at %s", cert.Subject, cert.NotAfter.UTC().Format(time.RFC3339)),
			})
		case now.Before(cert.NotBefore):
			statuses = append(statuses, ChainStatus{
				Status: "NotTimeValid",
				Info:   fmt.Sprintf("'%s' is not valid before %s", cert.Subject, cert.NotBefore.UTC().Format(time.RFC3339)),
			})
		}
	}

	_, err := presented[0].Verify(verifyOptions(presented, roots, now))
	if err == nil {
		return true, statuses
	}

	status := statusForError(err)
	if status.Status != "NotTimeValid" || len(statuses) == 0 {
		statuses = append(statuses, status)
	}
	return false, statuses
}

func verifyOptions(presented []*x509.Certificate, roots *x509.CertPool, now time.Time) x509.VerifyOptions {
	intermediates := x509.NewCertPool()
	for _, cert := range presented[1:] {
		if cert != nil {
			intermediates.AddCert(cert)
		}
	}
	return x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
}

func statusForError(err error) ChainStatus {
	var (
		unknownAuthority x509.UnknownAuthorityError
		invalid          x509.CertificateInvalidError
		hostname         x509.HostnameError
		systemRoots      x509.SystemRootsError
	)
	switch {
	case errors.As(err, &unknownAuthority):
		return ChainStatus{Status: "UntrustedRoot", Info: err.Error()}
	case errors.As(err, &invalid):
		switch invalid.Reason {
		case x509.Expired:
			return ChainStatus{Status: "NotTimeValid", Info: err.Error()}
		case x509.NotAuthorizedToSign, x509.TooManyIntermediates:
			return ChainStatus{Status: "InvalidBasicConstraints", Info: err.Error()}
		case x509.IncompatibleUsage:
			return ChainStatus{Status: "NotValidForUsage", Info: err.Error()}
		case x509.CANotAuthorizedForThisName, x509.CANotAuthorizedForExtKeyUsage, x509.NameConstraintsWithoutSANs, x509.UnconstrainedName:
			return ChainStatus{Status: "InvalidNameConstraints", Info: err.Error()}
		default:
			return ChainStatus{Status: "NotValid", Info: err.Error()}
		}
	case errors.As(err, &hostname):
		return ChainStatus{Status: "NameMismatch", Info: err.Error()}
	case errors.As(err, &systemRoots):
		return ChainStatus{Status: "UntrustedRoot", Info: err.Error()}
	default:
		return ChainStatus{Status: "Unknown", Info: err.Error()}
	}
}
