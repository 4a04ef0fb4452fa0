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


package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jeremyhahn/go-axiscert/internal/config"
	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/jeremyhahn/go-axiscert/pkg/job"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
	"github.com/jeremyhahn/go-axiscert/pkg/pam"
	"github.com/jeremyhahn/go-axiscert/pkg/trust"
	"github.com/spf13/viper"
)

// Options holds the CLI state shared by every command
type Options struct {
	ConfigFile   string
	OutputFormat string
	Verbose      bool
}

// NewOptions creates Options with default values
func NewOptions() *Options {
	return &Options{
		OutputFormat: string(OutputFormatText),
	}
}

// loadConfig reads the config file, or defaults plus environment when no
// file is given, and applies the command-line flags the user set.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if globalConfig.ConfigFile != "" {
		cfg, err = config.Load(globalConfig.ConfigFile)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags overlays flags that were set explicitly. viper reports a
// bound flag as set only when the user changed it.
func applyFlags(cfg *config.Config) {
	if viper.IsSet("host") {
		cfg.Device.Host = viper.GetString("host")
	}
	if viper.IsSet("tls") {
		cfg.Device.TLS = viper.GetBool("tls")
	}
	if viper.IsSet("username") {
		cfg.Device.Username = viper.GetString("username")
	}
	if viper.IsSet("password") {
		cfg.Device.Password = viper.GetString("password")
	}
	if viper.IsSet("serial") {
		cfg.Device.Serial = viper.GetString("serial")
	}
	if viper.IsSet("timeout") {
		cfg.Device.Timeout = viper.GetDuration("timeout")
	}
	if viper.IsSet("trust-layout") {
		cfg.Trust.Layout = trust.Layout(viper.GetString("trust-layout"))
	}
	if viper.IsSet("trust-bundle") {
		cfg.Trust.BundlePath = viper.GetString("trust-bundle")
	}
	if viper.IsSet("trust-root") {
		cfg.Trust.RootPath = viper.GetString("trust-root")
	}
	if viper.IsSet("trust-intermediate") {
		cfg.Trust.IntermediatePath = viper.GetString("trust-intermediate")
	}
	if viper.IsSet("log-level") {
		cfg.Logging.Level = viper.GetString("log-level")
	}
}

// newLogger returns the logger described by cfg writing to w.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}, w)
}

// session is one configured device connection and the job runner that
// drives it.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	resolver pam.Resolver
	client   *client.Client
	runner   *job.Runner
}

// newSession loads the configuration, resolves the device credentials and
// builds the device client. No request is sent to the device.
func newSession(ctx context.Context, logOut io.Writer) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, logOut)

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	resolver, err := cfg.Secrets.NewResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret resolver: %w", err)
	}
	clientCfg, err := cfg.ClientConfig(ctx, resolver)
	if err != nil {
		return nil, err
	}

	opts := []client.Option{
		client.WithLogger(logger),
		client.WithRateLimiter(cfg.RateLimit.NewLimiter()),
	}
	if cfg.Device.TLS {
		verifier, err := cfg.Trust.NewVerifier(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load trust anchors: %w", err)
		}
		opts = append(opts, client.WithVerifier(verifier))
	}

	c, err := client.New(clientCfg, opts...)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		client:   c,
		runner:   job.NewRunner(logger),
	}, nil
}

// Close releases the device connection and writes the metrics textfile
// when one is configured.
func (s *session) Close() error {
	_ = s.client.Close()
	if s.cfg.Metrics.Enabled && s.cfg.Metrics.TextfilePath != "" {
		if err := metrics.WriteTextfile(s.cfg.Metrics.TextfilePath); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// withSession runs fn against a fresh session and closes it afterwards.
func withSession(ctx context.Context, logOut io.Writer, fn func(*session) error) (err error) {
	s, err := newSession(ctx, logOut)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
