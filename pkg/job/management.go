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

package job

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
)

// Warning messages returned by the management jobs.
const (
	MessageAddEndEntity    = "UNSUPPORTED OPERATION --- This certificate cannot be used as a Trust. Unable to add end-entity certificates to a device."
	MessageRemoveEndEntity = "UNSUPPORTED OPERATION --- This certificate is an end-entity cert. Unable to remove end-entity certificates from a device."
	MessageAliasExists     = "ALIAS ALREADY EXISTS FOR CA CERTIFICATE --- Provide a new alias and resubmit."
	MessageAliasNotFound   = "NO CA CERTIFICATE FOUND --- No trusted CA certificate uses this alias."
)

// AddCA installs certificate as a trusted CA certificate under alias.
// certificate may be PEM, base64 DER or raw DER. End-entity certificates
// and aliases already in use are reported as warnings; an existing CA
// certificate is never overwritten.
func (r *Runner) AddCA(ctx context.Context, dev DeviceAPI, alias string, certificate []byte) *Result {
	ctx, result, start := r.begin(ctx, NameAddCA)
	logger := logging.FromContext(ctx, r.logger)

	if alias == "" {
		return r.finish(ctx, fail(result, "a certificate alias is required"), start)
	}
	cert, err := encoding.DecodeCertificate(certificate)
	if err != nil {
		return r.finish(ctx, fail(result, managementFailure("add", err)), start)
	}
	if !encoding.IsCA(cert) {
		logger.Warn("refusing to add an end-entity certificate", "alias", alias, "subject", cert.Subject.String())
		return r.finish(ctx, warn(result, MessageAddEndEntity), start)
	}

	cas, err := dev.ListCaCertificates(ctx)
	if err != nil {
		return r.finish(ctx, fail(result, managementFailure("add", err)), start)
	}
	for _, ca := range cas {
		if ca.Alias == alias {
			logger.Warn("a CA certificate already uses this alias", "alias", alias)
			return r.finish(ctx, warn(result, MessageAliasExists), start)
		}
	}

	pemCert, err := encoding.EncodeCertificatePEM(cert)
	if err != nil {
		return r.finish(ctx, fail(result, managementFailure("add", err)), start)
	}
	if err := dev.AddCaCertificate(ctx, alias, []byte(pemCert)); err != nil {
		return r.finish(ctx, fail(result, managementFailure("add", err)), start)
	}
	return r.finish(ctx, result, start)
}

// RemoveCA removes the trusted CA certificate installed under alias. A
// missing alias or a listed certificate that is not a CA is reported as a
// warning.
func (r *Runner) RemoveCA(ctx context.Context, dev DeviceAPI, alias string) *Result {
	ctx, result, start := r.begin(ctx, NameRemoveCA)
	logger := logging.FromContext(ctx, r.logger)

	if alias == "" {
		return r.finish(ctx, fail(result, "a certificate alias is required"), start)
	}
	cas, err := dev.ListCaCertificates(ctx)
	if err != nil {
		return r.finish(ctx, fail(result, managementFailure("remove", err)), start)
	}

	found := false
	var pemCert string
	for _, ca := range cas {
		if ca.Alias == alias {
			found = true
			pemCert = ca.PEM
			break
		}
	}
	if !found {
		logger.Warn("no CA certificate uses this alias", "alias", alias)
		return r.finish(ctx, warn(result, MessageAliasNotFound), start)
	}

	cert, err := encoding.DecodeCertificate([]byte(pemCert))
	if err != nil {
		return r.finish(ctx, fail(result, managementFailure("remove", err)), start)
	}
	if !encoding.IsCA(cert) {
		logger.Warn("refusing to remove an end-entity certificate", "alias", alias)
		return r.finish(ctx, warn(result, MessageRemoveEndEntity), start)
	}

	if err := dev.RemoveCaCertificate(ctx, alias, cert); err != nil {
		return r.finish(ctx, fail(result, managementFailure("remove", err)), start)
	}
	return r.finish(ctx, result, start)
}

func managementFailure(operation string, err error) string {
	return fmt.Sprintf("management job failed during '%s' operation: %v", operation, err)
}
