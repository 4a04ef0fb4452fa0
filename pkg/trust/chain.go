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
	"bytes"
	"crypto/x509"
	"fmt"
)

// BuildChain assembles the candidate chain [leaf, intermediates..., root] by
// following each certificate's Authority Key Identifier to the anchor whose
// Subject Key Identifier matches. complete is false when the walk could not
// reach a root; the partial chain is still returned for diagnostics.
func BuildChain(leaf *x509.Certificate, anchors *AnchorSet) (chain []*x509.Certificate, complete bool) {
	chain = []*x509.Certificate{leaf}
	if anchors == nil {
		return chain, false
	}

	current := leaf
	for range len(anchors.Intermediates) + 1 {
		if len(current.AuthorityKeyId) == 0 {
			return chain, false
		}
		if root := findBySubjectKeyID(anchors.Roots, current.AuthorityKeyId); root != nil {
			return append(chain, root), true
		}
		next := findBySubjectKeyID(anchors.Intermediates, current.AuthorityKeyId)
		if next == nil || contains(chain, next) {
			return chain, false
		}
		chain = append(chain, next)
		current = next
	}
	return chain, false
}

// VerifyKeyIdentifiers walks every adjacent (child, parent) pair of chain and
// requires the child's Authority Key Identifier to equal the parent's Subject
// Key Identifier. Only the raw key identifier bytes are compared.
func VerifyKeyIdentifiers(chain []*x509.Certificate) error {
	if len(chain) < 2 {
		return fmt.Errorf("%w: chain has %d certificate(s)", ErrMissingKeyIdentifier, len(chain))
	}
	for i := 0; i < len(chain)-1; i++ {
		child, parent := chain[i], chain[i+1]
		if len(parent.SubjectKeyId) == 0 {
			return fmt.Errorf("%w: '%s' has no subject key identifier", ErrMissingKeyIdentifier, parent.Subject)
		}
		if len(child.AuthorityKeyId) == 0 {
			return fmt.Errorf("%w: '%s' has no authority key identifier", ErrMissingKeyIdentifier, child.Subject)
		}
		if !bytes.Equal(child.AuthorityKeyId, parent.SubjectKeyId) {
			return fmt.Errorf("%w: '%s' AKI %x != '%s' SKI %x", ErrKeyIdentifierMismatch,
				child.Subject, child.AuthorityKeyId, parent.Subject, parent.SubjectKeyId)
		}
	}
	return nil
}

// verifySignatures checks that each certificate is signed by its successor.
func verifySignatures(chain []*x509.Certificate) error {
	for i := 0; i < len(chain)-1; i++ {
		if err := chain[i].CheckSignatureFrom(chain[i+1]); err != nil {
			return fmt.Errorf("trust: '%s' is not signed by '%s': %w", chain[i].Subject, chain[i+1].Subject, err)
		}
	}
	return nil
}

func findBySubjectKeyID(certs []*x509.Certificate, keyID []byte) *x509.Certificate {
	for _, cert := range certs {
		if len(cert.SubjectKeyId) > 0 && bytes.Equal(cert.SubjectKeyId, keyID) {
			return cert
		}
	}
	return nil
}

func contains(chain []*x509.Certificate, cert *x509.Certificate) bool {
	for _, c := range chain {
		if c.Equal(cert) {
			return true
		}
	}
	return false
}
