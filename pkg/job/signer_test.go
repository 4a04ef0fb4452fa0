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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
	"github.com/jeremyhahn/go-axiscert/pkg/trust/trusttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalSigner(t *testing.T) {
	root := trusttest.NewRoot(t, "Issuing CA")
	other := trusttest.NewRoot(t, "Other CA")

	_, err := NewLocalSigner(nil, nil, 0)
	assert.ErrorIs(t, err, ErrSignerConfig)

	leaf, leafKey := root.IssueLeaf(t, trusttest.LeafOptions{CommonName: "cam01"})
	_, err = NewLocalSigner(leaf, leafKey, 0)
	assert.ErrorIs(t, err, ErrSignerConfig)

	_, err = NewLocalSigner(root.Cert, other.Key, 0)
	assert.ErrorIs(t, err, ErrSignerConfig)

	signer, err := NewLocalSigner(root.Cert, root.Key, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultValidity, signer.validity)
	assert.Equal(t, root.Cert, signer.Certificate())
}

func TestLocalSignerSubmit(t *testing.T) {
	root := trusttest.NewRoot(t, "Issuing CA")
	signer, err := NewLocalSigner(root.Cert, root.Key, 24*time.Hour)
	require.NoError(t, err)

	csrPEM := newCSR(t, "cam01")
	cert, err := signer.Submit(context.Background(), csrPEM)
	require.NoError(t, err)

	assert.Equal(t, "cam01", cert.Subject.CommonName)
	assert.False(t, cert.IsCA)
	assert.Equal(t, root.Cert.SubjectKeyId, cert.AuthorityKeyId)
	assert.NoError(t, cert.CheckSignatureFrom(root.Cert))
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), cert.NotAfter, 10*time.Minute)

	_, err = signer.Submit(context.Background(), "not a csr")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = signer.Submit(ctx, csrPEM)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalSignerCapsValidityAtCA(t *testing.T) {
	root := trusttest.NewRoot(t, "Issuing CA")
	signer, err := NewLocalSigner(root.Cert, root.Key, 100*365*24*time.Hour)
	require.NoError(t, err)

	cert, err := signer.Submit(context.Background(), newCSR(t, "cam01"))
	require.NoError(t, err)
	assert.Equal(t, root.Cert.NotAfter.Unix(), cert.NotAfter.Unix())
}

func TestLoadLocalSigner(t *testing.T) {
	dir := t.TempDir()
	root := trusttest.NewRoot(t, "Issuing CA")
	certFile := trusttest.WriteCertificates(t, dir, "ca.pem", root.Cert)

	keyPEM, err := encoding.EncodePrivateKeyPEM(root.Key, []byte("secret"))
	require.NoError(t, err)
	keyFile := filepath.Join(dir, "ca.key")
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0600))

	signer, err := LoadLocalSigner(certFile, keyFile, []byte("secret"), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, signer.validity)

	_, err = LoadLocalSigner(certFile, keyFile, []byte("wrong"), time.Hour)
	assert.ErrorContains(t, err, "failed to parse CA key")

	_, err = LoadLocalSigner(filepath.Join(dir, "missing.pem"), keyFile, nil, 0)
	assert.ErrorContains(t, err, "failed to read CA certificate")

	_, err = LoadLocalSigner(certFile, filepath.Join(dir, "missing.key"), nil, 0)
	assert.ErrorContains(t, err, "failed to read CA key")
}

func TestSelfSignedSignerSaveAndLoad(t *testing.T) {
	_, err := NewSelfSignedSigner("", time.Hour, 0)
	assert.ErrorIs(t, err, ErrSignerConfig)
	_, err = NewSelfSignedSigner("Issuing CA", 0, 0)
	assert.ErrorIs(t, err, ErrSignerConfig)

	signer, err := NewSelfSignedSigner("Issuing CA", 24*time.Hour, time.Hour)
	require.NoError(t, err)
	assert.True(t, encoding.IsCA(signer.Certificate()))
	assert.Equal(t, "Issuing CA", signer.Certificate().Subject.CommonName)

	dir := t.TempDir()
	certFile := filepath.Join(dir, "ca.pem")
	keyFile := filepath.Join(dir, "ca.key")
	require.NoError(t, signer.Save(certFile, keyFile, []byte("secret")))

	keyPEM, err := os.ReadFile(keyFile)
	require.NoError(t, err)
	assert.Contains(t, string(keyPEM), encoding.PEMTypeEncryptedPrivateKey)

	loaded, err := LoadLocalSigner(certFile, keyFile, []byte("secret"), time.Hour)
	require.NoError(t, err)
	assert.True(t, loaded.Certificate().Equal(signer.Certificate()))

	require.NoError(t, signer.Save(certFile, keyFile, nil))
	_, err = LoadLocalSigner(certFile, keyFile, nil, time.Hour)
	require.NoError(t, err)
}
