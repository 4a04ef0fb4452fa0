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
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// SchemeAzure selects Azure Key Vault secret references.
const SchemeAzure = "azkv"

// ErrAzureConfig is returned for an unusable Azure Key Vault configuration.
var ErrAzureConfig = errors.New("pam: invalid azure key vault configuration")

// AzureConfig configures an AzureResolver. When ClientID, ClientSecret and
// TenantID are all set a service principal is used; otherwise the default
// Azure credential chain (managed identity, environment, CLI) applies.
type AzureConfig struct {
	VaultURL     string
	TenantID     string
	ClientID     string
	ClientSecret string
}

type secretGetter interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureResolver reads secrets from Azure Key Vault. References have the
// form name or name/version.
type AzureResolver struct {
	client secretGetter
}

// NewAzureResolver creates a resolver for the vault at config.VaultURL.
func NewAzureResolver(config *AzureConfig) (*AzureResolver, error) {
	if config == nil || config.VaultURL == "" {
		return nil, fmt.Errorf("%w: vault URL is required", ErrAzureConfig)
	}

	var cred azcore.TokenCredential
	if config.ClientID != "" && config.ClientSecret != "" && config.TenantID != "" {
		credOptions := &azidentity.ClientSecretCredentialOptions{
			AdditionallyAllowedTenants: []string{"*"},
		}
		c, err := azidentity.NewClientSecretCredential(
			config.TenantID,
			config.ClientID,
			config.ClientSecret,
			credOptions,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create client secret credential: %w", err)
		}
		cred = c
	} else {
		credOptions := &azidentity.DefaultAzureCredentialOptions{
			AdditionallyAllowedTenants: []string{"*"},
		}
		c, err := azidentity.NewDefaultAzureCredential(credOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		cred = c
	}

	client, err := azsecrets.NewClient(config.VaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets client: %w", err)
	}
	return &AzureResolver{client: client}, nil
}

// Resolve implements Resolver. An empty version reads the latest version.
func (a *AzureResolver) Resolve(ctx context.Context, ref string) (string, error) {
	name, version, _ := strings.Cut(strings.TrimSpace(ref), "/")
	if name == "" {
		return "", fmt.Errorf("%w: azure key vault reference %q must be name[/version]", ErrInvalidReference, ref)
	}

	resp, err := a.client.GetSecret(ctx, name, version, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("%w: %s has no value", ErrSecretNotFound, name)
	}
	return *resp.Value, nil
}
