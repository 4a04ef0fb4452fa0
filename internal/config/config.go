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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/trust"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// DefaultTrustBundle is the trust anchor bundle read when no other trust
// anchors are configured.
const DefaultTrustBundle = "/etc/axiscert/Axis.Trust"

// Config represents the complete orchestrator configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Device    DeviceConfig    `yaml:"device"`
	Trust     TrustConfig     `yaml:"trust"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Signer    SignerConfig    `yaml:"signer"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls metrics collection. TextfilePath, when set, is
// written in the node exporter textfile format after each command.
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TextfilePath string `yaml:"textfile_path"`
}

// DeviceConfig locates and authenticates to a camera. Username and
// Password may be secret references (env:, vault:, azkv:).
type DeviceConfig struct {
	Host          string        `yaml:"host"`
	TLS           bool          `yaml:"tls"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	Serial        string        `yaml:"serial"`
	Timeout       time.Duration `yaml:"timeout"`
	TLSMinVersion string        `yaml:"tls_min_version"` // TLS1.2, TLS1.3
}

// TrustConfig locates the private PKI that issued device identity
// certificates. It is required whenever the device is reached over TLS.
type TrustConfig struct {
	trust.AnchorConfig `yaml:",inline"`

	// SystemCAFiles replace the host roots for the fallback chain check.
	SystemCAFiles []string `yaml:"system_ca_files"`

	// KeyIdentifierOnly skips link signature checks.
	KeyIdentifierOnly bool `yaml:"key_identifier_only"`
}

// RateLimitConfig controls per-device request pacing
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	Burst          int  `yaml:"burst"`
}

// SecretsConfig enables secret reference schemes beyond env:.
type SecretsConfig struct {
	Vault *VaultConfig `yaml:"vault,omitempty"`
	Azure *AzureConfig `yaml:"azure,omitempty"`
}

// VaultConfig contains HashiCorp Vault settings
type VaultConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Address       string `yaml:"address"`
	Token         string `yaml:"token"`
	Namespace     string `yaml:"namespace"`
	KVVersion     int    `yaml:"kv_version"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify"`
}

// AzureConfig contains Azure Key Vault settings
type AzureConfig struct {
	Enabled      bool   `yaml:"enabled"`
	VaultURL     string `yaml:"vault_url"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SignerConfig is the local issuing CA used by reenrollment when no
// external certificate authority is involved.
type SignerConfig struct {
	CertFile     string `yaml:"cert_file"`
	KeyFile      string `yaml:"key_file"`
	KeyPassword  string `yaml:"key_password"`
	ValidityDays int    `yaml:"validity_days"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Device: DeviceConfig{
			TLS:           true,
			Timeout:       30 * time.Second,
			TLSMinVersion: "TLS1.2",
		},
		Trust: TrustConfig{
			AnchorConfig: trust.AnchorConfig{
				Layout:     trust.LayoutBundle,
				BundlePath: DefaultTrustBundle,
			},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin: 120,
			Burst:          5,
		},
		Signer: SignerConfig{
			ValidityDays: 365,
		},
	}
}

// Load reads configuration from a YAML file over Default and applies
// environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FromEnv returns Default with environment variable overrides applied.
func FromEnv() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Device
	if host := os.Getenv("AXISCERT_HOST"); host != "" {
		cfg.Device.Host = host
	}
	if username := os.Getenv("AXISCERT_USERNAME"); username != "" {
		cfg.Device.Username = username
	}
	if password := os.Getenv("AXISCERT_PASSWORD"); password != "" {
		cfg.Device.Password = password
	}
	if serial := os.Getenv("AXISCERT_SERIAL"); serial != "" {
		cfg.Device.Serial = serial
	}
	if useTLS := os.Getenv("AXISCERT_TLS"); useTLS != "" {
		v, err := strconv.ParseBool(useTLS)
		if err != nil {
			slog.Warn("ignoring invalid AXISCERT_TLS value", "value", useTLS, "error", err)
		} else {
			cfg.Device.TLS = v
		}
	}
	if timeout := os.Getenv("AXISCERT_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			slog.Warn("ignoring invalid AXISCERT_TIMEOUT value", "value", timeout, "default", cfg.Device.Timeout, "error", err)
		} else {
			cfg.Device.Timeout = d
		}
	}

	// Logging
	if level := os.Getenv("AXISCERT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("AXISCERT_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Trust anchors
	if layout := os.Getenv("AXISCERT_TRUST_LAYOUT"); layout != "" {
		cfg.Trust.Layout = trust.Layout(layout)
	}
	if bundle := os.Getenv("AXISCERT_TRUST_BUNDLE"); bundle != "" {
		cfg.Trust.BundlePath = bundle
	}
	if root := os.Getenv("AXISCERT_TRUST_ROOT"); root != "" {
		cfg.Trust.RootPath = root
	}
	if intermediate := os.Getenv("AXISCERT_TRUST_INTERMEDIATE"); intermediate != "" {
		cfg.Trust.IntermediatePath = intermediate
	}

	// Rate limiting
	if rpm := os.Getenv("AXISCERT_REQUESTS_PER_MIN"); rpm != "" {
		n, err := strconv.Atoi(rpm)
		if err != nil || n < 0 {
			slog.Warn("ignoring invalid AXISCERT_REQUESTS_PER_MIN value", "value", rpm, "default", cfg.RateLimit.RequestsPerMin)
		} else {
			cfg.RateLimit.RequestsPerMin = n
			cfg.RateLimit.Enabled = n > 0
		}
	}

	// Vault settings
	if cfg.Secrets.Vault != nil {
		if addr := os.Getenv("VAULT_ADDR"); addr != "" {
			cfg.Secrets.Vault.Address = addr
		}
		if token := os.Getenv("VAULT_TOKEN"); token != "" {
			cfg.Secrets.Vault.Token = token
		}
		if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
			cfg.Secrets.Vault.Namespace = namespace
		}
	}

	// Azure Key Vault settings
	if cfg.Secrets.Azure != nil {
		if vaultURL := os.Getenv("AZURE_KEYVAULT_URL"); vaultURL != "" {
			cfg.Secrets.Azure.VaultURL = vaultURL
		}
		if tenantID := os.Getenv("AZURE_TENANT_ID"); tenantID != "" {
			cfg.Secrets.Azure.TenantID = tenantID
		}
		if clientID := os.Getenv("AZURE_CLIENT_ID"); clientID != "" {
			cfg.Secrets.Azure.ClientID = clientID
		}
		if clientSecret := os.Getenv("AZURE_CLIENT_SECRET"); clientSecret != "" {
			cfg.Secrets.Azure.ClientSecret = clientSecret
		}
	}
}

// Validate checks if the configuration is valid. The device host is not
// required here; commands that talk to a device check it.
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug, info, warn or error)", ErrInvalidConfig, c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("%w: invalid log format: %s (must be json or text)", ErrInvalidConfig, c.Logging.Format)
	}

	if c.Device.Timeout < 0 {
		return fmt.Errorf("%w: device timeout must not be negative", ErrInvalidConfig)
	}
	if c.Device.TLSMinVersion != "" {
		if _, err := ParseTLSVersion(c.Device.TLSMinVersion); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if c.Device.TLS || c.Trust.Layout != "" {
		if err := c.Trust.AnchorConfig.Validate(); err != nil {
			return fmt.Errorf("%w: trust: %v", ErrInvalidConfig, err)
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("%w: ratelimit requests_per_min must be positive when enabled", ErrInvalidConfig)
	}

	if v := c.Secrets.Vault; v != nil && v.Enabled {
		if v.Address == "" {
			return fmt.Errorf("%w: vault address is required when enabled", ErrInvalidConfig)
		}
		if v.Token == "" {
			return fmt.Errorf("%w: vault token is required when enabled", ErrInvalidConfig)
		}
	}
	if a := c.Secrets.Azure; a != nil && a.Enabled && a.VaultURL == "" {
		return fmt.Errorf("%w: azure vault_url is required when enabled", ErrInvalidConfig)
	}

	if (c.Signer.CertFile == "") != (c.Signer.KeyFile == "") {
		return fmt.Errorf("%w: signer cert_file and key_file must be set together", ErrInvalidConfig)
	}
	if c.Signer.ValidityDays < 0 {
		return fmt.Errorf("%w: signer validity_days must not be negative", ErrInvalidConfig)
	}

	return nil
}
