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
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jeremyhahn/go-axiscert/internal/simulator"
	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/trust/trusttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDeviceClient builds a client for host from cfg the way the CLI does.
func newDeviceClient(t *testing.T, cfg *Config) *client.Client {
	t.Helper()
	require.NoError(t, cfg.Validate())

	resolver, err := cfg.Secrets.NewResolver()
	require.NoError(t, err)
	cc, err := cfg.ClientConfig(context.Background(), resolver)
	require.NoError(t, err)
	verifier, err := cfg.Trust.NewVerifier(logging.Discard())
	require.NoError(t, err)

	c, err := client.New(cc, client.WithVerifier(verifier), client.WithLogger(logging.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDefaultTrustValidatesDeviceIdentity(t *testing.T) {
	srv, err := simulator.NewServer(&simulator.Config{
		Username: "root",
		Password: "pass",
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)
	identity, err := simulator.NewIdentity("ABC123", []string{"127.0.0.1"})
	require.NoError(t, err)

	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Config.ErrorLog = log.New(io.Discard, "", 0)
	ts.TLS = identity.TLSConfig()
	ts.StartTLS()
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	rootFile := trusttest.WriteCertificates(t, dir, "root.pem", identity.Root)

	newConfig := func(serial, bundle string) *Config {
		cfg := Default()
		cfg.Device.Host = ts.Listener.Addr().String()
		cfg.Device.Username = "root"
		cfg.Device.Password = "pass"
		cfg.Device.Serial = serial
		cfg.Trust.SystemCAFiles = []string{rootFile}
		cfg.Trust.BundlePath = bundle
		return cfg
	}

	identityReasons := func(t *testing.T, err error) []string {
		t.Helper()
		require.Error(t, err)
		assert.Equal(t, client.KindIdentityValidation, client.Classify(err))
		var idErr *client.IdentityValidationError
		require.True(t, errors.As(err, &idErr))
		return idErr.Reasons
	}

	t.Run("missing bundle rejects", func(t *testing.T) {
		missing := filepath.Join(dir, "Axis.Trust")
		c := newDeviceClient(t, newConfig("ABC123", missing))
		err := c.Connect(context.Background())
		assert.Equal(t, []string{"no trusted certificates found at '" + missing + "'"}, identityReasons(t, err))
	})

	t.Run("empty bundle rejects", func(t *testing.T) {
		empty := trusttest.WriteCertificates(t, dir, "empty.pem")
		c := newDeviceClient(t, newConfig("ABC123", empty))
		err := c.Connect(context.Background())
		assert.Equal(t, []string{"no trusted certificates found at '" + empty + "'"}, identityReasons(t, err))
	})

	t.Run("serial mismatch rejects", func(t *testing.T) {
		c := newDeviceClient(t, newConfig("XYZ999", rootFile))
		err := c.Connect(context.Background())
		assert.Equal(t, []string{
			"SERIALNUMBER attribute value 'ABC123' does not match the expected value 'XYZ999'",
		}, identityReasons(t, err))
	})

	t.Run("matching serial accepted", func(t *testing.T) {
		c := newDeviceClient(t, newConfig("ABC123", rootFile))
		err := c.Connect(context.Background())
		assert.NoError(t, err)
	})
}
