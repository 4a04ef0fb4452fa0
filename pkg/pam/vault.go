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

package pam

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// SchemeVault selects HashiCorp Vault KV references.
const SchemeVault = "vault"

// DefaultVaultField is read when a reference names no field.
const DefaultVaultField = "value"

// ErrVaultConfig is returned for an unusable Vault configuration.
var ErrVaultConfig = errors.New("pam: invalid vault configuration")

// VaultConfig configures a VaultResolver.
type VaultConfig struct {
	// Address is the Vault server address (e.g., "https://vault:8200").
	Address string

	// Token is the Vault authentication token.
	Token string

	// Namespace is the Vault namespace (Enterprise feature, optional).
	Namespace string

	// KVVersion is the KV secrets engine version, 1 or 2. Defaults to 2.
	KVVersion int

	// TLSSkipVerify disables TLS certificate verification (not recommended
	// for production).
	TLSSkipVerify bool
}

// Validate checks the configuration and applies defaults.
func (c *VaultConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is required", ErrVaultConfig)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: token is required", ErrVaultConfig)
	}
	if c.KVVersion == 0 {
		c.KVVersion = 2
	}
	if c.KVVersion != 1 && c.KVVersion != 2 {
		return fmt.Errorf("%w: unsupported KV version %d", ErrVaultConfig, c.KVVersion)
	}
	return nil
}

// kvReader is the part of *vault.Logical used by VaultResolver.
type kvReader interface {
	ReadWithContext(ctx context.Context, path string) (*vault.Secret, error)
}

// VaultResolver reads secrets from a KV secrets engine. References have the
// form mount/path#field, for example secret/cameras/lobby#password.
type VaultResolver struct {
	logical   kvReader
	kvVersion int
}

// NewVaultResolver creates a resolver for the Vault server in config.
func NewVaultResolver(config *VaultConfig) (*VaultResolver, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrVaultConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	if config.TLSSkipVerify {
		tlsConfig := &vault.TLSConfig{
			Insecure: true,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	vaultClient, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	vaultClient.SetToken(config.Token)
	if config.Namespace != "" {
		vaultClient.SetNamespace(config.Namespace)
	}

	return &VaultResolver{logical: vaultClient.Logical(), kvVersion: config.KVVersion}, nil
}

// Resolve implements Resolver.
func (v *VaultResolver) Resolve(ctx context.Context, ref string) (string, error) {
	path, field, err := parseVaultRef(ref)
	if err != nil {
		return "", err
	}
	readPath := path
	if v.kvVersion == 2 {
		readPath = kv2DataPath(path)
	}

	secret, err := v.logical.ReadWithContext(ctx, readPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s from vault: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	data := secret.Data
	if v.kvVersion == 2 {
		inner, ok := secret.Data["data"].(map[string]interface{})
		if !ok {
			// A deleted KV v2 version reports data as null.
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}
		data = inner
	}

	raw, ok := data[field]
	if !ok {
		return "", fmt.Errorf("%w: field %q at %s", ErrSecretNotFound, field, path)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q at %s is not a string", ErrInvalidReference, field, path)
	}
	return value, nil
}

func parseVaultRef(ref string) (path, field string, err error) {
	path, field, _ = strings.Cut(strings.TrimSpace(ref), "#")
	path = strings.Trim(path, "/")
	if path == "" || !strings.Contains(path, "/") {
		return "", "", fmt.Errorf("%w: vault reference %q must be mount/path[#field]", ErrInvalidReference, ref)
	}
	if field == "" {
		field = DefaultVaultField
	}
	return path, field, nil
}

// kv2DataPath inserts the data segment after the mount: secret/a/b becomes
// secret/data/a/b. Paths that already carry it are left alone.
func kv2DataPath(path string) string {
	mount, rest, _ := strings.Cut(path, "/")
	if strings.HasPrefix(rest, "data/") {
		return path
	}
	return mount + "/data/" + rest
}
