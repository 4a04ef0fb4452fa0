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
	"context"
	"fmt"
	"log/slog"

	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/jeremyhahn/go-axiscert/pkg/pam"
	"github.com/jeremyhahn/go-axiscert/pkg/ratelimit"
	"github.com/jeremyhahn/go-axiscert/pkg/trust"
)

// NewResolver returns a secret resolver with env: always registered and
// vault: and azkv: registered when enabled.
func (s *SecretsConfig) NewResolver() (*pam.Schemes, error) {
	schemes := pam.NewSchemes()

	if s.Vault != nil && s.Vault.Enabled {
		r, err := pam.NewVaultResolver(&pam.VaultConfig{
			Address:       s.Vault.Address,
			Token:         s.Vault.Token,
			Namespace:     s.Vault.Namespace,
			KVVersion:     s.Vault.KVVersion,
			TLSSkipVerify: s.Vault.TLSSkipVerify,
		})
		if err != nil {
			return nil, err
		}
		if err := schemes.Register(pam.SchemeVault, r); err != nil {
			return nil, err
		}
	}

	if s.Azure != nil && s.Azure.Enabled {
		r, err := pam.NewAzureResolver(&pam.AzureConfig{
			VaultURL:     s.Azure.VaultURL,
			TenantID:     s.Azure.TenantID,
			ClientID:     s.Azure.ClientID,
			ClientSecret: s.Azure.ClientSecret,
		})
		if err != nil {
			return nil, err
		}
		if err := schemes.Register(pam.SchemeAzure, r); err != nil {
			return nil, err
		}
	}

	return schemes, nil
}

// NewVerifier returns the device identity verifier. The anchor files are
// read on every handshake, so a missing bundle rejects the device rather
// than failing here.
func (t TrustConfig) NewVerifier(logger *slog.Logger) (*trust.Verifier, error) {
	anchors, err := trust.NewFileAnchors(t.AnchorConfig)
	if err != nil {
		return nil, err
	}
	roots, err := t.SystemRoots()
	if err != nil {
		return nil, err
	}
	return trust.NewVerifier(&trust.Config{
		Anchors:           anchors,
		SystemRoots:       roots,
		KeyIdentifierOnly: t.KeyIdentifierOnly,
		Logger:            logger,
	})
}

// NewLimiter returns the per-device request limiter.
func (r RateLimitConfig) NewLimiter() *ratelimit.Limiter {
	return ratelimit.New(&ratelimit.Config{
		Enabled:           r.Enabled,
		RequestsPerMinute: r.RequestsPerMin,
		Burst:             r.Burst,
	})
}

// ClientConfig resolves the device credentials through resolver and
// returns the device client configuration.
func (c *Config) ClientConfig(ctx context.Context, resolver pam.Resolver) (*client.Config, error) {
	username, err := pam.ResolveField(ctx, resolver, "device.username", c.Device.Username)
	if err != nil {
		return nil, err
	}
	password, err := pam.ResolveField(ctx, resolver, "device.password", c.Device.Password)
	if err != nil {
		return nil, err
	}

	cfg := &client.Config{
		Host:           c.Device.Host,
		UseTLS:         c.Device.TLS,
		Username:       username,
		Password:       password,
		ExpectedSerial: c.Device.Serial,
		Timeout:        c.Device.Timeout,
	}
	if c.Device.TLSMinVersion != "" {
		v, err := ParseTLSVersion(c.Device.TLSMinVersion)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		cfg.TLSMinVersion = v
	}
	if c.RateLimit.Enabled {
		cfg.RequestsPerMinute = c.RateLimit.RequestsPerMin
	}
	return cfg, nil
}
