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
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
)

// Layout selects how trust anchors are laid out on disk.
type Layout string

const (
	// LayoutBundle is a single PEM file holding roots and intermediates.
	LayoutBundle Layout = "bundle"

	// LayoutSplit is a root file holding exactly one certificate plus an
	// optional intermediate file.
	LayoutSplit Layout = "split"
)

// AnchorConfig locates the private PKI trust anchors.
type AnchorConfig struct {
	Layout           Layout `yaml:"layout"`
	BundlePath       string `yaml:"bundle_path"`
	RootPath         string `yaml:"root_path"`
	IntermediatePath string `yaml:"intermediate_path"`
}

// Validate checks that the paths required by the layout are present.
func (c AnchorConfig) Validate() error {
	switch c.Layout {
	case LayoutBundle:
		if c.BundlePath == "" {
			return fmt.Errorf("%w: bundle layout requires bundle_path", ErrInvalidLayout)
		}
	case LayoutSplit:
		if c.RootPath == "" {
			return fmt.Errorf("%w: split layout requires root_path", ErrInvalidLayout)
		}
	default:
		return fmt.Errorf("%w: %q (must be bundle or split)", ErrInvalidLayout, c.Layout)
	}
	return nil
}

// AnchorSet is a loaded set of trust anchors.
type AnchorSet struct {
	Roots         []*x509.Certificate
	Intermediates []*x509.Certificate
}

// AnchorSource supplies trust anchors to the verifier. Load is called once
// per validation and must not perform network I/O. Errors matching
// ErrAnchorStore reject the device; any other error is a system failure.
type AnchorSource interface {
	Load() (*AnchorSet, error)
}

// FileAnchors loads trust anchors from local files on every call, so
// replacing the files on disk takes effect on the next connection.
type FileAnchors struct {
	config AnchorConfig
}

// NewFileAnchors returns a file backed anchor source.
func NewFileAnchors(cfg AnchorConfig) (*FileAnchors, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FileAnchors{config: cfg}, nil
}

// Load reads and parses the configured trust anchor files.
func (f *FileAnchors) Load() (*AnchorSet, error) {
	switch f.config.Layout {
	case LayoutBundle:
		return f.loadBundle()
	case LayoutSplit:
		return f.loadSplit()
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLayout, f.config.Layout)
	}
}

func (f *FileAnchors) loadBundle() (*AnchorSet, error) {
	certs, err := readAnchors(f.config.BundlePath, "trusted")
	if err != nil {
		return nil, err
	}
	return partition(certs), nil
}

func (f *FileAnchors) loadSplit() (*AnchorSet, error) {
	roots, err := readAnchors(f.config.RootPath, "trusted")
	if err != nil {
		return nil, err
	}
	if len(roots) > 1 {
		return nil, &AnchorStoreError{
			Reason: fmt.Sprintf("more than 1 certificate found at '%s'", f.config.RootPath),
		}
	}

	set := &AnchorSet{Roots: roots}
	if f.config.IntermediatePath == "" {
		return set, nil
	}

	intermediates, err := readAnchors(f.config.IntermediatePath, "trusted intermediate")
	if err != nil {
		return nil, err
	}
	set.Intermediates = intermediates
	return set, nil
}

// readAnchors reads at least one certificate from path. A missing or empty
// file is an unusable store; other read and parse errors are returned as is.
func readAnchors(path, kind string) ([]*x509.Certificate, error) {
	certs, err := ReadCertificates(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, &AnchorStoreError{
			Reason: fmt.Sprintf("no %s certificates found at '%s'", kind, path),
		}
	}
	return certs, nil
}

// StaticAnchors serves an in-memory anchor set.
type StaticAnchors struct {
	set AnchorSet
}

// NewStaticAnchors returns an anchor source over the given certificates.
func NewStaticAnchors(roots, intermediates []*x509.Certificate) *StaticAnchors {
	return &StaticAnchors{set: AnchorSet{Roots: roots, Intermediates: intermediates}}
}

// Load returns a copy of the configured anchor set.
func (s *StaticAnchors) Load() (*AnchorSet, error) {
	if len(s.set.Roots) == 0 && len(s.set.Intermediates) == 0 {
		return nil, &AnchorStoreError{Reason: "no trusted certificates configured"}
	}
	return &AnchorSet{
		Roots:         append([]*x509.Certificate(nil), s.set.Roots...),
		Intermediates: append([]*x509.Certificate(nil), s.set.Intermediates...),
	}, nil
}

// ReadCertificates parses every certificate in a PEM bundle. Files without
// PEM armor are parsed as concatenated DER. An empty file yields no
// certificates and no error.
func ReadCertificates(path string) ([]*x509.Certificate, error) {
	// #nosec G304 - trust anchor paths come from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAnchorRead, path, err)
	}
	certs, err := ParseCertificates(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAnchorParse, path, err)
	}
	return certs, nil
}

// ParseCertificates parses PEM encoded certificates, falling back to DER.
// PEM input without a CERTIFICATE block yields no certificates.
func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	certs, err := encoding.DecodeCertificateChainPEM(data)
	if err == nil {
		return certs, nil
	}
	if !errors.Is(err, encoding.ErrInvalidPEMEncoding) {
		return nil, err
	}
	if block, _ := pem.Decode(data); block != nil {
		return nil, nil
	}
	return x509.ParseCertificates(data)
}

// partition splits a flat bundle into self-issued roots and intermediates.
func partition(certs []*x509.Certificate) *AnchorSet {
	set := &AnchorSet{}
	for _, cert := range certs {
		if isSelfIssued(cert) {
			set.Roots = append(set.Roots, cert)
		} else {
			set.Intermediates = append(set.Intermediates, cert)
		}
	}
	return set
}

func isSelfIssued(cert *x509.Certificate) bool {
	return bytes.Equal(cert.RawSubject, cert.RawIssuer)
}
