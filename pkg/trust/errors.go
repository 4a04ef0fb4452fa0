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
	"errors"
	"strings"
)

var (
	// ErrNoAnchorSource is returned when a verifier is built without trust anchors.
	ErrNoAnchorSource = errors.New("trust: no trust anchor source configured")

	// ErrInvalidLayout is returned for an unknown trust anchor layout or missing paths.
	ErrInvalidLayout = errors.New("trust: invalid trust anchor layout")

	// ErrAnchorRead is returned when a trust anchor file cannot be read.
	ErrAnchorRead = errors.New("trust: failed to read trust anchor file")

	// ErrAnchorParse is returned when a trust anchor file holds malformed certificates.
	ErrAnchorParse = errors.New("trust: failed to parse trust anchor file")

	// ErrAnchorStore marks a trust anchor store that loaded cleanly but cannot
	// be used (empty, or an ambiguous root). These reject the device rather
	// than fail the system.
	ErrAnchorStore = errors.New("trust: unusable trust anchor store")

	// ErrMissingKeyIdentifier is returned when a chain link lacks an SKI or AKI.
	ErrMissingKeyIdentifier = errors.New("trust: missing key identifier")

	// ErrKeyIdentifierMismatch is returned when a child's AKI differs from its parent's SKI.
	ErrKeyIdentifierMismatch = errors.New("trust: key identifier mismatch")
)

// AnchorStoreError describes why a loaded trust anchor store is unusable.
type AnchorStoreError struct {
	Reason string
}

func (e *AnchorStoreError) Error() string {
	return e.Reason
}

// Is reports ErrAnchorStore as a match.
func (e *AnchorStoreError) Is(target error) bool {
	return target == ErrAnchorStore
}

// RejectionError is returned from the TLS handshake when the device identity
// could not be validated. It carries the complete result so that callers can
// report every reason rather than the first one.
type RejectionError struct {
	Result Result
}

func (e *RejectionError) Error() string {
	if e.Result.Decision == SystemFailure && e.Result.Cause != nil {
		return "trust: device identity validation failed: " + e.Result.Cause.Error()
	}
	return "trust: device identity rejected: " + strings.Join(e.Result.Reasons, "; ")
}

func (e *RejectionError) Unwrap() error {
	return e.Result.Cause
}
