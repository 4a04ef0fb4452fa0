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

	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
)

// MessageInventorySkipped is reported when one or more certificates could
// not be inventoried.
const MessageInventorySkipped = "could not fetch 1 or more certificates, refer to the log for more detailed information"

// Inventory lists the trusted CA certificates and the client certificates
// held in the device's default keystore. Client certificates are tagged
// with the usage they are bound to. Certificates that cannot be parsed are
// skipped and downgrade the result to a warning.
func (r *Runner) Inventory(ctx context.Context, dev DeviceAPI) *Result {
	ctx, result, start := r.begin(ctx, NameInventory)
	logger := logging.FromContext(ctx, r.logger)

	cas, err := dev.ListCaCertificates(ctx)
	if err != nil {
		return r.finish(ctx, fail(result, inventoryFailure(err)), start)
	}
	certs, err := dev.ListCertificates(ctx)
	if err != nil {
		return r.finish(ctx, fail(result, inventoryFailure(err)), start)
	}
	keystore, err := dev.GetDefaultKeystore(ctx)
	if err != nil {
		return r.finish(ctx, fail(result, inventoryFailure(err)), start)
	}
	logger.Debug("default keystore", "keystore", keystore)

	bound := make(map[client.Usage]string, len(client.BindingUsages))
	for _, usage := range client.BindingUsages {
		alias, err := dev.GetUsageBinding(ctx, usage)
		if err != nil {
			return r.finish(ctx, fail(result, inventoryFailure(err)), start)
		}
		bound[usage] = alias
	}

	skipped := 0
	for _, ca := range cas {
		if !parsable(ca.PEM) {
			logger.Warn("skipping unparsable CA certificate", "alias", ca.Alias)
			skipped++
			continue
		}
		result.Items = append(result.Items, Item{
			Alias:        ca.Alias,
			Certificates: []string{ca.PEM},
			Usage:        client.UsageTrust,
		})
	}

	for _, cert := range certs {
		if cert.Keystore != keystore {
			logger.Debug("skipping certificate outside the default keystore",
				"alias", cert.Alias,
				"keystore", cert.Keystore)
			continue
		}
		if !parsable(cert.PEM) {
			logger.Warn("skipping unparsable client certificate", "alias", cert.Alias)
			skipped++
			continue
		}
		usage := bindingFor(cert.Alias, bound)
		logger.Debug("client certificate usage", "alias", cert.Alias, "usage", usage)
		result.Items = append(result.Items, Item{
			Alias:        cert.Alias,
			Certificates: []string{cert.PEM},
			Usage:        usage,
			PrivateKey:   true,
		})
	}

	if skipped > 0 {
		warn(result, MessageInventorySkipped)
	}
	return r.finish(ctx, result, start)
}

// bindingFor returns the first usage, in BindingUsages order, bound to
// alias.
func bindingFor(alias string, bound map[client.Usage]string) client.Usage {
	for _, usage := range client.BindingUsages {
		if a := bound[usage]; a != "" && a == alias {
			return usage
		}
	}
	return client.UsageUnbound
}

func parsable(pemCert string) bool {
	_, err := encoding.DecodeCertificate([]byte(pemCert))
	return err == nil
}

func inventoryFailure(err error) string {
	return fmt.Sprintf("inventory job failed during inventory item creation: %v", err)
}
