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
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
)

// SubmitFunc sends a PEM encoded CSR to a certificate authority and returns
// the issued certificate.
type SubmitFunc func(ctx context.Context, csrPEM string) (*x509.Certificate, error)

// ReenrollRequest describes a certificate to generate on the device.
type ReenrollRequest struct {
	Alias   string
	Subject string
	// Usage is bound to the new certificate when it is HTTPS, IEEE802.X
	// or MQTT.
	Usage        client.Usage
	KeyAlgorithm string
	KeySize      int
	SANs         []string
}

// Reenroll has the device generate a new key and self-signed certificate
// under req.Alias, submits the device CSR, replaces the self-signed
// certificate with the issued one and binds it to req.Usage. An unmapped
// key algorithm and size fails the job before the device is contacted.
func (r *Runner) Reenroll(ctx context.Context, dev DeviceAPI, req ReenrollRequest, submit SubmitFunc) *Result {
	ctx, result, start := r.begin(ctx, NameReenroll)
	logger := logging.FromContext(ctx, r.logger)

	if err := r.reenroll(ctx, dev, req, submit); err != nil {
		return r.finish(ctx, fail(result, err.Error()), start)
	}
	logger.Info("certificate reenrolled", "alias", req.Alias, "usage", req.Usage)
	return r.finish(ctx, result, start)
}

func (r *Runner) reenroll(ctx context.Context, dev DeviceAPI, req ReenrollRequest, submit SubmitFunc) error {
	logger := logging.FromContext(ctx, r.logger)

	if req.Alias == "" {
		return errors.New("a certificate alias is required")
	}
	if submit == nil {
		return errors.New("no CSR submitter configured")
	}
	keyType := client.MapKeyType(req.KeyAlgorithm, req.KeySize)
	if !keyType.Supported() {
		return fmt.Errorf("the key algorithm '%s' and key size '%d' selected for reenrollment do not correspond to a valid key algorithm and key size on the device",
			req.KeyAlgorithm, req.KeySize)
	}
	logger.Debug("mapped key type", "key_type", keyType)

	keystore, err := dev.GetDefaultKeystore(ctx)
	if err != nil {
		return err
	}
	if err := dev.CreateSelfSignedCertificate(ctx, req.Alias, keyType, keystore, req.Subject, req.SANs); err != nil {
		return err
	}

	csrPEM, err := dev.ObtainCsr(ctx, req.Alias)
	if err != nil {
		return err
	}
	if _, err := encoding.ValidateCSR(csrPEM); err != nil {
		return fmt.Errorf("device returned an unusable CSR: %w", err)
	}

	cert, err := submit(ctx, csrPEM)
	if err != nil {
		return fmt.Errorf("CSR submission failed: %w", err)
	}
	if cert == nil {
		return errors.New("CSR submission returned no certificate")
	}
	pemCert, err := encoding.EncodeCertificatePEM(cert)
	if err != nil {
		return err
	}
	if err := dev.ReplaceCertificate(ctx, req.Alias, pemCert); err != nil {
		return err
	}

	if !isBindable(req.Usage) {
		logger.Debug("certificate usage is not bindable, leaving bindings unchanged", "usage", req.Usage)
		return nil
	}
	return dev.SetUsageBinding(ctx, req.Alias, req.Usage)
}

func isBindable(usage client.Usage) bool {
	for _, u := range client.BindingUsages {
		if u == usage {
			return true
		}
	}
	return false
}
