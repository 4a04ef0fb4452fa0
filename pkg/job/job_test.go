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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/jeremyhahn/go-axiscert/pkg/correlation"
	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/trust/trusttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice records calls in order and fails the operation named in failOn.
type fakeDevice struct {
	cas      []client.CACertificate
	certs    []client.DeviceCertificate
	keystore client.Keystore
	bindings map[client.Usage]string
	csr      string

	failOn string
	calls  []string

	created  *createCall
	replaced string
	added    []byte
	removed  string
}

type createCall struct {
	alias    string
	keyType  client.KeyType
	keystore client.Keystore
	subject  string
	sans     []string
}

var errDevice = errors.New("device unavailable")

func (f *fakeDevice) call(name string) error {
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return errDevice
	}
	return nil
}

func (f *fakeDevice) ListCaCertificates(context.Context) ([]client.CACertificate, error) {
	return f.cas, f.call("ListCaCertificates")
}

func (f *fakeDevice) ListCertificates(context.Context) ([]client.DeviceCertificate, error) {
	return f.certs, f.call("ListCertificates")
}

func (f *fakeDevice) GetDefaultKeystore(context.Context) (client.Keystore, error) {
	return f.keystore, f.call("GetDefaultKeystore")
}

func (f *fakeDevice) CreateSelfSignedCertificate(_ context.Context, alias string, keyType client.KeyType, keystore client.Keystore, subject string, sans []string) error {
	f.created = &createCall{alias, keyType, keystore, subject, sans}
	return f.call("CreateSelfSignedCertificate")
}

func (f *fakeDevice) ObtainCsr(context.Context, string) (string, error) {
	return f.csr, f.call("ObtainCsr")
}

func (f *fakeDevice) ReplaceCertificate(_ context.Context, _ string, pemCert string) error {
	f.replaced = pemCert
	return f.call("ReplaceCertificate")
}

func (f *fakeDevice) AddCaCertificate(_ context.Context, _ string, certificate []byte) error {
	f.added = certificate
	return f.call("AddCaCertificate")
}

func (f *fakeDevice) RemoveCaCertificate(_ context.Context, alias string, _ *x509.Certificate) error {
	f.removed = alias
	return f.call("RemoveCaCertificate")
}

func (f *fakeDevice) GetUsageBinding(_ context.Context, usage client.Usage) (string, error) {
	return f.bindings[usage], f.call("GetUsageBinding")
}

func (f *fakeDevice) SetUsageBinding(_ context.Context, alias string, usage client.Usage) error {
	if f.bindings == nil {
		f.bindings = make(map[client.Usage]string)
	}
	f.bindings[usage] = alias
	return f.call("SetUsageBinding")
}

func newRunner() *Runner {
	return NewRunner(logging.Discard())
}

func pemOf(t *testing.T, cert *x509.Certificate) string {
	t.Helper()
	s, err := encoding.EncodeCertificatePEM(cert)
	require.NoError(t, err)
	return s
}

func TestInventory(t *testing.T) {
	root := trusttest.NewRoot(t, "Corp Root CA")
	leaf, _ := root.IssueLeaf(t, trusttest.LeafOptions{CommonName: "cam"})
	leafPEM := pemOf(t, leaf)

	dev := &fakeDevice{
		cas:      []client.CACertificate{{Alias: "corp-root", PEM: pemOf(t, root.Cert)}},
		keystore: client.KeystoreTEE,
		certs: []client.DeviceCertificate{
			{Alias: "web", PEM: leafPEM, Keystore: client.KeystoreTEE},
			{Alias: "dot1x", PEM: leafPEM, Keystore: client.KeystoreTEE},
			{Alias: "mqtt", PEM: leafPEM, Keystore: client.KeystoreTEE},
			{Alias: "spare", PEM: leafPEM, Keystore: client.KeystoreTEE},
			{Alias: "secure-element", PEM: leafPEM, Keystore: client.KeystoreSE},
		},
		bindings: map[client.Usage]string{
			client.UsageHTTPS: "web",
			client.UsageIEEE:  "dot1x",
			client.UsageMQTT:  "mqtt",
		},
	}

	ctx := correlation.WithID(context.Background(), "inv-1")
	result := newRunner().Inventory(ctx, dev)
	require.Equal(t, StatusSuccess, result.Status, result.Message)
	assert.True(t, result.OK())
	assert.Equal(t, NameInventory, result.Job)
	assert.Equal(t, "inv-1", result.CorrelationID)

	usages := make(map[string]client.Usage)
	for _, item := range result.Items {
		usages[item.Alias] = item.Usage
	}
	assert.Equal(t, map[string]client.Usage{
		"corp-root": client.UsageTrust,
		"web":       client.UsageHTTPS,
		"dot1x":     client.UsageIEEE,
		"mqtt":      client.UsageMQTT,
		"spare":     client.UsageUnbound,
	}, usages)

	assert.False(t, result.Items[0].PrivateKey, "CA certificates have no private key")
	assert.True(t, result.Items[1].PrivateKey)
	assert.Equal(t, []string{leafPEM}, result.Items[1].Certificates)
}

func TestInventoryBindingPrecedence(t *testing.T) {
	leaf, _ := trusttest.NewRoot(t, "Root").IssueLeaf(t, trusttest.LeafOptions{CommonName: "cam"})
	dev := &fakeDevice{
		keystore: client.KeystoreSE,
		certs:    []client.DeviceCertificate{{Alias: "shared", PEM: pemOf(t, leaf), Keystore: client.KeystoreSE}},
		bindings: map[client.Usage]string{client.UsageHTTPS: "shared", client.UsageMQTT: "shared"},
	}

	result := newRunner().Inventory(context.Background(), dev)
	require.Len(t, result.Items, 1)
	assert.Equal(t, client.UsageHTTPS, result.Items[0].Usage)
}

func TestInventorySkipsUnparsableCertificates(t *testing.T) {
	root := trusttest.NewRoot(t, "Corp Root CA")
	dev := &fakeDevice{
		cas: []client.CACertificate{
			{Alias: "good", PEM: pemOf(t, root.Cert)},
			{Alias: "broken", PEM: "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"},
		},
		certs:    []client.DeviceCertificate{{Alias: "junk", PEM: "junk", Keystore: client.KeystoreTEE}},
		keystore: client.KeystoreTEE,
	}

	result := newRunner().Inventory(context.Background(), dev)
	assert.Equal(t, StatusWarning, result.Status)
	assert.Equal(t, MessageInventorySkipped, result.Message)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "good", result.Items[0].Alias)
}

func TestInventoryDeviceFailure(t *testing.T) {
	for _, op := range []string{"ListCaCertificates", "ListCertificates", "GetDefaultKeystore", "GetUsageBinding"} {
		t.Run(op, func(t *testing.T) {
			dev := &fakeDevice{keystore: client.KeystoreTEE, failOn: op}
			result := newRunner().Inventory(context.Background(), dev)
			assert.Equal(t, StatusFailure, result.Status)
			assert.Contains(t, result.Message, errDevice.Error())
			assert.Empty(t, result.Items)
		})
	}
}

func TestAddCA(t *testing.T) {
	root := trusttest.NewRoot(t, "Corp Root CA")

	t.Run("added", func(t *testing.T) {
		dev := &fakeDevice{cas: []client.CACertificate{{Alias: "other"}}}
		result := newRunner().AddCA(context.Background(), dev, "corp-root", root.Cert.Raw)
		require.Equal(t, StatusSuccess, result.Status, result.Message)
		assert.Equal(t, []string{"ListCaCertificates", "AddCaCertificate"}, dev.calls)

		sent := string(dev.added)
		assert.True(t, strings.HasPrefix(sent, "-----BEGIN CERTIFICATE-----\n"))
		for _, line := range strings.Split(strings.TrimSpace(sent), "\n") {
			assert.LessOrEqual(t, len(line), 64)
		}
	})

	t.Run("end-entity", func(t *testing.T) {
		leaf, _ := root.IssueLeaf(t, trusttest.LeafOptions{CommonName: "cam"})
		dev := &fakeDevice{}
		result := newRunner().AddCA(context.Background(), dev, "cam", leaf.Raw)
		assert.Equal(t, StatusWarning, result.Status)
		assert.Equal(t, MessageAddEndEntity, result.Message)
		assert.Empty(t, dev.calls)
	})

	t.Run("alias in use", func(t *testing.T) {
		dev := &fakeDevice{cas: []client.CACertificate{{Alias: "corp-root"}}}
		result := newRunner().AddCA(context.Background(), dev, "corp-root", root.Cert.Raw)
		assert.Equal(t, StatusWarning, result.Status)
		assert.Equal(t, MessageAliasExists, result.Message)
		assert.Equal(t, []string{"ListCaCertificates"}, dev.calls)
	})

	t.Run("unparsable", func(t *testing.T) {
		result := newRunner().AddCA(context.Background(), &fakeDevice{}, "x", []byte("not a certificate"))
		assert.Equal(t, StatusFailure, result.Status)
	})

	t.Run("device failure", func(t *testing.T) {
		dev := &fakeDevice{failOn: "AddCaCertificate"}
		result := newRunner().AddCA(context.Background(), dev, "corp-root", root.Cert.Raw)
		assert.Equal(t, StatusFailure, result.Status)
		assert.Contains(t, result.Message, "'add' operation")
	})
}

func TestRemoveCA(t *testing.T) {
	root := trusttest.NewRoot(t, "Corp Root CA")
	leaf, _ := root.IssueLeaf(t, trusttest.LeafOptions{CommonName: "cam"})
	cas := []client.CACertificate{
		{Alias: "corp-root", PEM: pemOf(t, root.Cert)},
		{Alias: "not-a-ca", PEM: pemOf(t, leaf)},
	}

	t.Run("removed", func(t *testing.T) {
		dev := &fakeDevice{cas: cas}
		result := newRunner().RemoveCA(context.Background(), dev, "corp-root")
		require.Equal(t, StatusSuccess, result.Status, result.Message)
		assert.Equal(t, "corp-root", dev.removed)
	})

	t.Run("missing alias", func(t *testing.T) {
		dev := &fakeDevice{cas: cas}
		result := newRunner().RemoveCA(context.Background(), dev, "gone")
		assert.Equal(t, StatusWarning, result.Status)
		assert.Equal(t, MessageAliasNotFound, result.Message)
		assert.Empty(t, dev.removed)
	})

	t.Run("end-entity", func(t *testing.T) {
		dev := &fakeDevice{cas: cas}
		result := newRunner().RemoveCA(context.Background(), dev, "not-a-ca")
		assert.Equal(t, StatusWarning, result.Status)
		assert.Equal(t, MessageRemoveEndEntity, result.Message)
		assert.Empty(t, dev.removed)
	})
}

func newCSR(t *testing.T, cn string) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: cn},
	}, key)
	require.NoError(t, err)
	return encoding.EncodeCSRPEM(der)
}

func TestReenroll(t *testing.T) {
	root := trusttest.NewRoot(t, "Issuing CA")
	issued, _ := root.IssueLeaf(t, trusttest.LeafOptions{CommonName: "cam"})

	dev := &fakeDevice{keystore: client.KeystoreSE, csr: newCSR(t, "cam")}
	var submitted string
	submit := func(_ context.Context, csr string) (*x509.Certificate, error) {
		submitted = csr
		return issued, nil
	}

	req := ReenrollRequest{
		Alias:        "cam-https",
		Subject:      "CN=cam",
		Usage:        client.UsageHTTPS,
		KeyAlgorithm: "ECC",
		KeySize:      256,
		SANs:         []string{"DNS:cam.example.com"},
	}
	result := newRunner().Reenroll(context.Background(), dev, req, submit)
	require.Equal(t, StatusSuccess, result.Status, result.Message)

	assert.Equal(t, []string{
		"GetDefaultKeystore",
		"CreateSelfSignedCertificate",
		"ObtainCsr",
		"ReplaceCertificate",
		"SetUsageBinding",
	}, dev.calls)
	assert.Equal(t, &createCall{"cam-https", client.KeyTypeECP256, client.KeystoreSE, "CN=cam", []string{"DNS:cam.example.com"}}, dev.created)
	assert.Equal(t, dev.csr, submitted)
	assert.Equal(t, pemOf(t, issued), dev.replaced)
	assert.Equal(t, "cam-https", dev.bindings[client.UsageHTTPS])
}

func TestReenrollUnknownKeyType(t *testing.T) {
	dev := &fakeDevice{}
	result := newRunner().Reenroll(context.Background(), dev, ReenrollRequest{
		Alias:        "cam",
		KeyAlgorithm: "RSA",
		KeySize:      1024,
	}, func(context.Context, string) (*x509.Certificate, error) { return nil, nil })

	assert.Equal(t, StatusFailure, result.Status)
	assert.Contains(t, result.Message, "'RSA' and key size '1024'")
	assert.Empty(t, dev.calls, "the device must not be contacted")
}

func TestReenrollFailures(t *testing.T) {
	root := trusttest.NewRoot(t, "Issuing CA")
	issued, _ := root.IssueLeaf(t, trusttest.LeafOptions{CommonName: "cam"})
	ok := func(context.Context, string) (*x509.Certificate, error) { return issued, nil }

	req := ReenrollRequest{Alias: "cam", Usage: client.UsageMQTT, KeyAlgorithm: "RSA", KeySize: 2048}

	t.Run("invalid CSR", func(t *testing.T) {
		dev := &fakeDevice{keystore: client.KeystoreTEE, csr: "junk"}
		result := newRunner().Reenroll(context.Background(), dev, req, ok)
		assert.Equal(t, StatusFailure, result.Status)
		assert.Contains(t, result.Message, "unusable CSR")
		assert.NotContains(t, dev.calls, "ReplaceCertificate")
	})

	t.Run("submission rejected", func(t *testing.T) {
		dev := &fakeDevice{keystore: client.KeystoreTEE, csr: newCSR(t, "cam")}
		result := newRunner().Reenroll(context.Background(), dev, req, func(context.Context, string) (*x509.Certificate, error) {
			return nil, errors.New("denied")
		})
		assert.Equal(t, StatusFailure, result.Status)
		assert.Contains(t, result.Message, "denied")
	})

	t.Run("device failure", func(t *testing.T) {
		dev := &fakeDevice{keystore: client.KeystoreTEE, csr: newCSR(t, "cam"), failOn: "CreateSelfSignedCertificate"}
		result := newRunner().Reenroll(context.Background(), dev, req, ok)
		assert.Equal(t, StatusFailure, result.Status)
		assert.NotContains(t, dev.calls, "ObtainCsr")
	})

	t.Run("unbindable usage", func(t *testing.T) {
		dev := &fakeDevice{keystore: client.KeystoreTEE, csr: newCSR(t, "cam")}
		other := req
		other.Usage = client.UsageOther
		result := newRunner().Reenroll(context.Background(), dev, other, ok)
		require.Equal(t, StatusSuccess, result.Status, result.Message)
		assert.NotContains(t, dev.calls, "SetUsageBinding")
	})
}
