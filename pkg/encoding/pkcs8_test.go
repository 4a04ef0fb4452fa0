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

package encoding

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	t.Run("plain", func(t *testing.T) {
		data, err := EncodePrivateKeyPEM(key, nil)
		require.NoError(t, err)
		assert.Contains(t, string(data), "BEGIN PRIVATE KEY")

		signer, err := DecodePrivateKeyPEM(data, nil)
		require.NoError(t, err)
		assert.True(t, key.PublicKey.Equal(signer.Public()))
	})

	t.Run("encrypted", func(t *testing.T) {
		data, err := EncodePrivateKeyPEM(key, []byte("changeit"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "BEGIN ENCRYPTED PRIVATE KEY")

		signer, err := DecodePrivateKeyPEM(data, []byte("changeit"))
		require.NoError(t, err)
		assert.True(t, key.PublicKey.Equal(signer.Public()))

		_, err = DecodePrivateKeyPEM(data, nil)
		assert.ErrorIs(t, err, ErrPasswordRequired)

		_, err = DecodePrivateKeyPEM(data, []byte("wrong"))
		assert.Error(t, err)
	})
}

func TestDecodePrivateKeyPEMLegacyFormats(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaPEM := pem.EncodeToMemory(&pem.Block{Type: PEMTypeRSAPrivateKey, Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)})

	signer, err := DecodePrivateKeyPEM(rsaPEM, nil)
	require.NoError(t, err)
	assert.True(t, rsaKey.PublicKey.Equal(signer.Public()))

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)

	signer, err = DecodePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: PEMTypeECPrivateKey, Bytes: ecDER}), nil)
	require.NoError(t, err)
	assert.True(t, ecKey.PublicKey.Equal(signer.Public()))
}

func TestDecodePrivateKeyPEMErrors(t *testing.T) {
	_, err := DecodePrivateKeyPEM(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = DecodePrivateKeyPEM([]byte("no pem"), nil)
	assert.ErrorIs(t, err, ErrInvalidPEMEncoding)

	_, err = DecodePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{1}}), nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = EncodePrivateKeyPEM(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}
