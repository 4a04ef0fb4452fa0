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
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-axiscert/internal/simulator"
	"github.com/jeremyhahn/go-axiscert/pkg/pam"
	"github.com/spf13/cobra"
)

var (
	simulateAddr        string
	simulateKeystore    string
	simulateRootOut     string
	simulateErrorStatus int
)

// simulateCmd serves a simulated device for testing and demos
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve a simulated Axis device",
	Long: `Serve the certificate, web service and MQTT client APIs of a simulated
Axis device until interrupted.

The device credentials come from --username and --password. Over TLS the
device presents an identity certificate carrying --serial, issued by a
freshly generated private root that is written to --root-out for use as a
trust bundle.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSimulator(ctx, cmd)
	},
}

func runSimulator(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	resolver, err := cfg.Secrets.NewResolver()
	if err != nil {
		return fmt.Errorf("failed to create secret resolver: %w", err)
	}
	username, err := pam.ResolveField(ctx, resolver, "device.username", cfg.Device.Username)
	if err != nil {
		return err
	}
	password, err := pam.ResolveField(ctx, resolver, "device.password", cfg.Device.Password)
	if err != nil {
		return err
	}

	simCfg := &simulator.Config{
		Addr:        simulateAddr,
		Device:      simulator.NewDevice(simulateKeystore),
		Username:    username,
		Password:    password,
		ErrorStatus: simulateErrorStatus,
		Logger:      logger,
	}

	if cfg.Device.TLS {
		host, _, err := net.SplitHostPort(simulateAddr)
		if err != nil {
			return fmt.Errorf("invalid listen address %q: %w", simulateAddr, err)
		}
		identity, err := simulator.NewIdentity(cfg.Device.Serial, []string{host})
		if err != nil {
			return fmt.Errorf("failed to create device identity: %w", err)
		}
		simCfg.TLSConfig = identity.TLSConfig()

		if simulateRootOut != "" {
			rootPEM, err := identity.RootPEM()
			if err != nil {
				return err
			}
			if err := os.WriteFile(simulateRootOut, []byte(rootPEM), 0o644); err != nil {
				return fmt.Errorf("failed to write root certificate: %w", err)
			}
			printVerbose(cmd, "Wrote private root to %s", simulateRootOut)
		}
	}

	srv, err := simulator.NewServer(simCfg)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errChan
}

func init() {
	simulateCmd.Flags().StringVar(&simulateAddr, "addr", "127.0.0.1:8443",
		"listen address")
	simulateCmd.Flags().StringVar(&simulateKeystore, "keystore", simulator.KeystoreTEE,
		"default keystore of the simulated device (TEE0, SE0)")
	simulateCmd.Flags().StringVar(&simulateRootOut, "root-out", "",
		"write the private root certificate to this file")
	simulateCmd.Flags().IntVar(&simulateErrorStatus, "error-status", 200,
		"HTTP status sent with API errors and SOAP faults")
}
