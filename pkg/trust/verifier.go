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

// Package trust validates the identity certificate presented by a camera.
//
// A device is trusted when its TLS certificate chains to the private device
// PKI through Subject/Authority Key Identifier links and its subject carries
// the expected SERIALNUMBER attribute. Certificates that do not chain to the
// private PKI fall back to conventional TLS validation.
package trust

import (
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
)

const (
	pathAnchor = "anchor"
	pathSystem = "system"
	pathInput  = "input"
)

// Config configures a Verifier.
type Config struct {
	// Anchors supplies the private PKI trust anchors.
	Anchors AnchorSource

	// SystemRoots is used for the conventional fallback. Nil selects the
	// host's system pool.
	SystemRoots *x509.CertPool

	// KeyIdentifierOnly links the private PKI chain by key identifiers
	// alone, without checking each link's signature.
	KeyIdentifierOnly bool

	Logger *slog.Logger
}

// Verifier validates device identity certificates. It is safe for concurrent
// use and never performs network I/O.
type Verifier struct {
	anchors           AnchorSource
	systemRoots       *x509.CertPool
	keyIdentifierOnly bool
	logger            *slog.Logger
	now               func() time.Time
}

// NewVerifier creates a verifier from cfg.
func NewVerifier(cfg *Config) (*Verifier, error) {
	if cfg == nil || cfg.Anchors == nil {
		return nil, ErrNoAnchorSource
	}
	return &Verifier{
		anchors:           cfg.Anchors,
		systemRoots:       cfg.SystemRoots,
		keyIdentifierOnly: cfg.KeyIdentifierOnly,
		logger:            logging.OrDefault(cfg.Logger),
		now:               time.Now,
	}, nil
}

// Validate decides whether leaf, presented with chain, identifies the device
// whose subject SERIALNUMBER is expectedSerial. chain is the chain sent by
// the server, normally starting with leaf. policy carries the
// conventional TLS errors observed for the connection and is consulted only
// when leaf does not chain to the private PKI.
func (v *Verifier) Validate(leaf *x509.Certificate, chain []*x509.Certificate, policy PolicyErrors, expectedSerial string) Result {
	result, path := v.validate(leaf, chain, policy, expectedSerial)
	metrics.RecordIdentityValidation(result.Decision.String(), path)

	switch result.Decision {
	case Accept:
		v.logger.Info("device identity accepted", "path", path)
	case Reject:
		v.logger.Warn("device identity rejected", "path", path, "reasons", result.Reasons)
	case SystemFailure:
		v.logger.Error("device identity validation failed", "path", path, "error", result.Cause)
	}
	return result
}

func (v *Verifier) validate(leaf *x509.Certificate, chain []*x509.Certificate, policy PolicyErrors, expectedSerial string) (Result, string) {
	if leaf == nil {
		return Rejected("server certificate is nil"), pathInput
	}
	if chain == nil {
		return Rejected("server certificate chain is nil"), pathInput
	}

	anchors, err := v.anchors.Load()
	if err != nil {
		var storeErr *AnchorStoreError
		if errors.As(err, &storeErr) {
			return Rejected(storeErr.Reason), pathAnchor
		}
		return Failed(err), pathAnchor
	}
	v.logger.Debug("loaded trust anchors",
		"roots", len(anchors.Roots),
		"intermediates", len(anchors.Intermediates))

	if v.anchorChainValid(leaf, anchors) {
		return v.checkSerialNumber(leaf, expectedSerial), pathAnchor
	}

	return v.fallback(presentedChain(leaf, chain), policy), pathSystem
}

func (v *Verifier) anchorChainValid(leaf *x509.Certificate, anchors *AnchorSet) bool {
	candidate, complete := BuildChain(leaf, anchors)
	if !complete {
		v.logger.Debug("leaf does not chain to a trust anchor",
			"subject", leaf.Subject.String(),
			"aki", fmt.Sprintf("%x", leaf.AuthorityKeyId))
		return false
	}

	for i, cert := range candidate {
		v.logger.Debug("chain link",
			"depth", i,
			"subject", cert.Subject.String(),
			"ski", fmt.Sprintf("%x", cert.SubjectKeyId),
			"aki", fmt.Sprintf("%x", cert.AuthorityKeyId))
	}

	if err := VerifyKeyIdentifiers(candidate); err != nil {
		v.logger.Debug("key identifier chain invalid", "error", err)
		return false
	}
	if !v.keyIdentifierOnly {
		if err := verifySignatures(candidate); err != nil {
			v.logger.Debug("anchor chain signature invalid", "error", err)
			return false
		}
	}
	return true
}

func (v *Verifier) checkSerialNumber(leaf *x509.Certificate, expected string) Result {
	lines := SubjectLines(leaf)
	v.logger.Debug("device identity subject", "subject", leaf.Subject.String())

	found, ok := FindAttribute(lines, SerialNumberAttribute)
	if !ok {
		return Rejected("SERIALNUMBER attribute was not found in the certificate subject DN")
	}
	if found != expected {
		return Rejected(fmt.Sprintf(
			"SERIALNUMBER attribute value '%s' does not match the expected value '%s'", found, expected))
	}
	return Accepted()
}

func (v *Verifier) fallback(chain []*x509.Certificate, policy PolicyErrors) Result {
	if policy == PolicyNone {
		return Accepted()
	}

	var reasons []string
	if policy.Has(PolicyRemoteCertificateNotAvailable) {
		reasons = append(reasons, ReasonCertificateNotPresent)
	}
	if policy.Has(PolicyRemoteCertificateNameMismatch) {
		reasons = append(reasons, ReasonNameMismatch)
	}
	if policy.Has(PolicyRemoteCertificateChainErrors) {
		reasons = append(reasons, ReasonChainInvalid)
		built, statuses := SystemChainStatus(chain, v.systemRoots, v.now())
		if !built {
			reasons = append(reasons, ReasonChainNotBuilt)
		}
		for _, status := range statuses {
			reasons = append(reasons, status.String())
		}
	}

	return Rejected(append([]string{ReasonValidationFailed}, reasons...)...)
}

// presentedChain returns chain with leaf first.
func presentedChain(leaf *x509.Certificate, chain []*x509.Certificate) []*x509.Certificate {
	if len(chain) > 0 && chain[0] != nil && chain[0].Equal(leaf) {
		return chain
	}
	return append([]*x509.Certificate{leaf}, chain...)
}
