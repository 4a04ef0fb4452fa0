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

package simulator

import (
	"crypto/rand"
	"crypto/x509"
	"testing"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
	"github.com/jeremyhahn/go-axiscert/pkg/trust/trusttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signCSR issues a certificate for csrPEM from ca.
func signCSR(t *testing.T, ca *trusttest.Authority, csrPEM string) *x509.Certificate {
	t.Helper()
	csr, err := encoding.ValidateCSR(csrPEM)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: randomSerial(),
		Subject:      csr.Subject,
		DNSNames:     csr.DNSNames,
		IPAddresses:  csr.IPAddresses,
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, csr.PublicKey, ca.Key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestParseSubject(t *testing.T) {
	name, err := ParseSubject("CN=cam01, O=Example, OU=Video, C=SE, ST=Skane, L=Lund, SERIALNUMBER=ACCC8E000001")
	require.NoError(t, err)
	assert.Equal(t, "cam01", name.CommonName)
	assert.Equal(t, []string{"Example"}, name.Organization)
	assert.Equal(t, []string{"Video"}, name.OrganizationalUnit)
	assert.Equal(t, []string{"SE"}, name.Country)
	assert.Equal(t, []string{"Skane"}, name.Province)
	assert.Equal(t, []string{"Lund"}, name.Locality)
	assert.Equal(t, "ACCC8E000001", name.SerialNumber)

	for _, bad := range []string{"", "cam01", "CN=", "EMAIL=a@b"} {
		_, err := ParseSubject(bad)
		assert.ErrorIs(t, err, ErrInvalidRequest, bad)
	}
}

func TestCACertificates(t *testing.T) {
	dev := NewDevice("")
	root := trusttest.NewRoot(t, "Root B")
	other := trusttest.NewRoot(t, "Root A")

	require.NoError(t, dev.AddCACertificate("b-root", root.Cert))
	require.NoError(t, dev.AddCACertificate("a-root", other.Cert))
	assert.ErrorIs(t, dev.AddCACertificate("b-root", other.Cert), ErrAlreadyExists)
	assert.ErrorIs(t, dev.AddCACertificate("", root.Cert), ErrInvalidRequest)

	leaf, _ := root.IssueLeaf(t, trusttest.LeafOptions{CommonName: "cam01"})
	assert.ErrorIs(t, dev.AddCACertificate("leaf", leaf), ErrNotCA)

	cas := dev.CACertificates()
	require.Len(t, cas, 2)
	assert.Equal(t, "a-root", cas[0].Alias)
	assert.Equal(t, "b-root", cas[1].Alias)

	require.NoError(t, dev.RemoveCACertificate("a-root"))
	assert.ErrorIs(t, dev.RemoveCACertificate("a-root"), ErrNotFound)
	assert.Len(t, dev.CACertificates(), 1)
}

func TestCreateSelfSigned(t *testing.T) {
	dev := NewDevice(KeystoreSE)
	assert.Equal(t, KeystoreSE, dev.DefaultKeystore())

	err := dev.CreateSelfSigned("cam https", "EC-P256", "", "CN=cam01,SERIALNUMBER=ACCC8E000001",
		[]string{"cam01.local", "192.168.1.10", " "})
	require.NoError(t, err)

	c, err := dev.Certificate("cam https")
	require.NoError(t, err)
	assert.Equal(t, KeystoreSE, c.Keystore)
	assert.Equal(t, "cam01", c.Cert.Subject.CommonName)
	assert.Equal(t, "ACCC8E000001", c.Cert.Subject.SerialNumber)
	assert.Equal(t, []string{"cam01.local"}, c.Cert.DNSNames)
	require.Len(t, c.Cert.IPAddresses, 1)
	assert.Equal(t, "192.168.1.10", c.Cert.IPAddresses[0].String())
	assert.False(t, c.Cert.IsCA)

	assert.ErrorIs(t, dev.CreateSelfSigned("cam https", "EC-P256", "", "CN=x", nil), ErrAlreadyExists)
	assert.ErrorIs(t, dev.CreateSelfSigned("other", "DSA-1024", "", "CN=x", nil), ErrUnsupportedKeyType)
	assert.ErrorIs(t, dev.CreateSelfSigned("other", "EC-P256", "HSM9", "CN=x", nil), ErrUnsupportedKeystore)
	assert.ErrorIs(t, dev.CreateSelfSigned("", "EC-P256", "", "CN=x", nil), ErrInvalidRequest)
	assert.ErrorIs(t, dev.CreateSelfSigned("other", "EC-P256", "", "", nil), ErrInvalidRequest)

	_, err = dev.Certificate("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCSRAndReplace(t *testing.T) {
	dev := NewDevice("")
	require.NoError(t, dev.CreateSelfSigned("mqtt", "EC-P384", KeystoreTEE, "CN=cam02,O=Example", []string{"cam02.local"}))

	csrPEM, err := dev.CSR("mqtt")
	require.NoError(t, err)
	csr, err := encoding.ValidateCSR(csrPEM)
	require.NoError(t, err)
	assert.Equal(t, "cam02", csr.Subject.CommonName)
	assert.Equal(t, []string{"cam02.local"}, csr.DNSNames)

	_, err = dev.CSR("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ca := trusttest.NewRoot(t, "Issuing CA")
	issued := signCSR(t, ca, csrPEM)
	require.NoError(t, dev.ReplaceCertificate("mqtt", issued))

	c, err := dev.Certificate("mqtt")
	require.NoError(t, err)
	assert.Equal(t, issued.Raw, c.Cert.Raw)
	assert.Equal(t, ca.Cert.Subject.String(), c.Cert.Issuer.String())

	foreign, _ := ca.IssueLeaf(t, trusttest.LeafOptions{CommonName: "cam02"})
	assert.ErrorIs(t, dev.ReplaceCertificate("mqtt", foreign), ErrKeyMismatch)
	assert.ErrorIs(t, dev.ReplaceCertificate("missing", issued), ErrNotFound)
}

func TestBindings(t *testing.T) {
	dev := NewDevice("")
	require.NoError(t, dev.CreateSelfSigned("web", "EC-P256", "", "CN=cam03", nil))

	assert.Empty(t, dev.Binding(BindingHTTPS))
	require.NoError(t, dev.Bind(BindingHTTPS, "web"))
	assert.Equal(t, "web", dev.Binding(BindingHTTPS))
	assert.ErrorIs(t, dev.Bind(BindingIEEE, "missing"), ErrNotFound)
	assert.Empty(t, dev.Binding(BindingIEEE))
}

func TestConfigureMQTT(t *testing.T) {
	dev := NewDevice("")
	require.NoError(t, dev.CreateSelfSigned("mqtt", "EC-P256", "", "CN=cam04", nil))

	cfg := dev.MQTT()
	assert.Equal(t, "mqtt.local", cfg.Server.Host)
	assert.Empty(t, cfg.SSL.ClientCertID)

	cfg.SSL.ClientCertID = "mqtt"
	require.NoError(t, dev.ConfigureMQTT(cfg))
	assert.Equal(t, "mqtt", dev.MQTT().SSL.ClientCertID)

	cfg.SSL.ClientCertID = "missing"
	assert.ErrorIs(t, dev.ConfigureMQTT(cfg), ErrNotFound)

	cfg.Server.Host = ""
	assert.ErrorIs(t, dev.ConfigureMQTT(cfg), ErrInvalidRequest)
}

func TestFaults(t *testing.T) {
	dev := NewDevice("")
	_, ok := dev.fault("list_certificates")
	assert.False(t, ok)

	dev.InjectFault("list_certificates", Fault{Code: 42, Message: "boom"})
	f, ok := dev.fault("list_certificates")
	require.True(t, ok)
	assert.Equal(t, 42, f.Code)

	dev.ClearFaults()
	_, ok = dev.fault("list_certificates")
	assert.False(t, ok)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeNotFound, errorCode(ErrNotFound))
	assert.Equal(t, CodeAlreadyExists, errorCode(ErrAlreadyExists))
	assert.Equal(t, CodeNotCA, errorCode(ErrNotCA))
	assert.Equal(t, CodeKeyMismatch, errorCode(ErrKeyMismatch))
	assert.Equal(t, CodeUnsupported, errorCode(ErrUnsupportedKeystore))
	assert.Equal(t, CodeInvalidParameter, errorCode(ErrInvalidRequest))
	assert.Equal(t, CodeInternal, errorCode(ErrInternal))
}

func TestNewIdentity(t *testing.T) {
	id, err := NewIdentity("ACCC8E0000AA", []string{"cam.local", "127.0.0.1"})
	require.NoError(t, err)

	assert.True(t, id.Root.IsCA)
	assert.Equal(t, "ACCC8E0000AA", id.Leaf.Subject.SerialNumber)
	assert.Equal(t, []string{"cam.local"}, id.Leaf.DNSNames)
	assert.Equal(t, id.Root.SubjectKeyId, id.Leaf.AuthorityKeyId)

	pool := x509.NewCertPool()
	pool.AddCert(id.Root)
	_, err = id.Leaf.Verify(x509.VerifyOptions{Roots: pool, DNSName: "cam.local"})
	assert.NoError(t, err)

	rootPEM, err := id.RootPEM()
	require.NoError(t, err)
	assert.Contains(t, rootPEM, "BEGIN CERTIFICATE")
	assert.Len(t, id.TLSConfig().Certificates, 1)
}
