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

// Package simulator emulates the certificate management surface of an Axis
// network camera: the VAPIX REST certificate API, the SOAP web services for
// the HTTPS and IEEE 802.1X bindings and the MQTT client CGI. State is held
// in memory and lost when the process exits.
package simulator

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
)

// Keystores reported by the simulated device.
const (
	KeystoreTEE = "TEE0"
	KeystoreSE  = "SE0"
)

// Binding slots served by the SOAP web services.
const (
	BindingHTTPS = "https"
	BindingIEEE  = "ieee"
)

// MQTTServer is the broker the simulated MQTT client connects to.
type MQTTServer struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// MQTTSSL holds the TLS settings of the simulated MQTT client.
type MQTTSSL struct {
	ValidateServerCert bool   `json:"validateServerCert"`
	ClientCertID       string `json:"clientCertID"`
}

// MQTTConfig is the MQTT client configuration.
type MQTTConfig struct {
	Server            MQTTServer `json:"server"`
	ClientID          string     `json:"clientId"`
	CleanSession      bool       `json:"cleanSession"`
	KeepAliveInterval int        `json:"keepAliveInterval,omitempty"`
	SSL               MQTTSSL    `json:"ssl"`
}

// Fault makes an operation fail until it is cleared. A zero Status uses the
// server's error status.
type Fault struct {
	Status  int
	Code    int
	Message string
}

// Certificate is a client certificate held by the device.
type Certificate struct {
	Alias    string
	Keystore string
	Cert     *x509.Certificate
}

type keyPair struct {
	Certificate
	key crypto.Signer
}

// CACertificate is a trusted CA certificate held by the device.
type CACertificate struct {
	Alias string
	Cert  *x509.Certificate
}

// Device is the in-memory state of one simulated camera. It is safe for
// concurrent use.
type Device struct {
	mu       sync.RWMutex
	keystore string
	certs    map[string]*keyPair
	cas      map[string]*x509.Certificate
	bindings map[string]string
	mqtt     MQTTConfig
	faults   map[string]Fault
}

// NewDevice returns an empty device whose default keystore is keystore, or
// TEE0 when keystore is empty.
func NewDevice(keystore string) *Device {
	if keystore == "" {
		keystore = KeystoreTEE
	}
	return &Device{
		keystore: keystore,
		certs:    make(map[string]*keyPair),
		cas:      make(map[string]*x509.Certificate),
		bindings: make(map[string]string),
		mqtt: MQTTConfig{
			Server:       MQTTServer{Protocol: "ssl", Host: "mqtt.local", Port: 8883},
			ClientID:     "axis-simulator",
			CleanSession: true,
			SSL:          MQTTSSL{ValidateServerCert: true},
		},
		faults: make(map[string]Fault),
	}
}

// DefaultKeystore returns the keystore new keys are created in.
func (d *Device) DefaultKeystore() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.keystore
}

// InjectFault makes op fail with f until ClearFaults is called. Operation
// names match those used by the device client metrics.
func (d *Device) InjectFault(op string, f Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[op] = f
}

// ClearFaults removes every injected fault.
func (d *Device) ClearFaults() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults = make(map[string]Fault)
}

func (d *Device) fault(op string) (Fault, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.faults[op]
	return f, ok
}

// CACertificates returns the trusted CA certificates ordered by alias.
func (d *Device) CACertificates() []CACertificate {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]CACertificate, 0, len(d.cas))
	for _, alias := range sortedKeys(d.cas) {
		out = append(out, CACertificate{Alias: alias, Cert: d.cas[alias]})
	}
	return out
}

// AddCACertificate installs cert as a trusted CA under alias.
func (d *Device) AddCACertificate(alias string, cert *x509.Certificate) error {
	if alias == "" {
		return fmt.Errorf("%w: alias is required", ErrInvalidRequest)
	}
	if !encoding.IsCA(cert) {
		return fmt.Errorf("%w: %s", ErrNotCA, cert.Subject)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cas[alias]; ok {
		return fmt.Errorf("%w: CA certificate %q", ErrAlreadyExists, alias)
	}
	d.cas[alias] = cert
	return nil
}

// RemoveCACertificate deletes the trusted CA stored under alias.
func (d *Device) RemoveCACertificate(alias string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cas[alias]; !ok {
		return fmt.Errorf("%w: CA certificate %q", ErrNotFound, alias)
	}
	delete(d.cas, alias)
	return nil
}

// Certificates returns the client certificates ordered by alias.
func (d *Device) Certificates() []Certificate {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Certificate, 0, len(d.certs))
	for _, alias := range sortedKeys(d.certs) {
		out = append(out, d.certs[alias].Certificate)
	}
	return out
}

// Certificate returns the client certificate stored under alias.
func (d *Device) Certificate(alias string) (Certificate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kp, ok := d.certs[alias]
	if !ok {
		return Certificate{}, fmt.Errorf("%w: certificate %q", ErrNotFound, alias)
	}
	return kp.Certificate, nil
}

// CreateSelfSigned generates a key of keyType in keystore and stores a
// self-signed certificate for it under alias.
func (d *Device) CreateSelfSigned(alias, keyType, keystore, subject string, sans []string) error {
	if alias == "" {
		return fmt.Errorf("%w: alias is required", ErrInvalidRequest)
	}
	if keystore == "" {
		keystore = d.DefaultKeystore()
	}
	if keystore != KeystoreTEE && keystore != KeystoreSE {
		return fmt.Errorf("%w: %q", ErrUnsupportedKeystore, keystore)
	}
	name, err := ParseSubject(subject)
	if err != nil {
		return err
	}

	d.mu.RLock()
	_, exists := d.certs[alias]
	d.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: certificate %q", ErrAlreadyExists, alias)
	}

	key, err := generateKey(keyType)
	if err != nil {
		return err
	}
	dnsNames, ips := splitSANs(sans)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          randomSerial(),
		Subject:               name,
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return fmt.Errorf("%w: create certificate: %v", ErrInternal, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("%w: parse certificate: %v", ErrInternal, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.certs[alias]; ok {
		return fmt.Errorf("%w: certificate %q", ErrAlreadyExists, alias)
	}
	d.certs[alias] = &keyPair{
		Certificate: Certificate{Alias: alias, Keystore: keystore, Cert: cert},
		key:         key,
	}
	return nil
}

// CSR returns a PEM certificate signing request built from the subject,
// SANs and key of the certificate stored under alias.
func (d *Device) CSR(alias string) (string, error) {
	d.mu.RLock()
	kp, ok := d.certs[alias]
	d.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: certificate %q", ErrNotFound, alias)
	}

	tmpl := &x509.CertificateRequest{
		Subject:     kp.Cert.Subject,
		DNSNames:    kp.Cert.DNSNames,
		IPAddresses: kp.Cert.IPAddresses,
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, tmpl, kp.key)
	if err != nil {
		return "", fmt.Errorf("%w: create CSR: %v", ErrInternal, err)
	}
	return encoding.EncodeCSRPEM(der), nil
}

// ReplaceCertificate swaps the certificate stored under alias. The new
// certificate must carry the stored public key.
func (d *Device) ReplaceCertificate(alias string, cert *x509.Certificate) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	kp, ok := d.certs[alias]
	if !ok {
		return fmt.Errorf("%w: certificate %q", ErrNotFound, alias)
	}
	pub, ok := kp.key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(cert.PublicKey) {
		return fmt.Errorf("%w: %q", ErrKeyMismatch, alias)
	}
	kp.Cert = cert
	return nil
}

// Binding returns the alias bound to slot, or "" when unbound.
func (d *Device) Binding(slot string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bindings[slot]
}

// Bind binds the certificate stored under alias to slot.
func (d *Device) Bind(slot, alias string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.certs[alias]; !ok {
		return fmt.Errorf("%w: certificate %q", ErrNotFound, alias)
	}
	d.bindings[slot] = alias
	return nil
}

// MQTT returns the MQTT client configuration.
func (d *Device) MQTT() MQTTConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mqtt
}

// ConfigureMQTT replaces the MQTT client configuration. A non-empty client
// certificate must exist on the device.
func (d *Device) ConfigureMQTT(cfg MQTTConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.Server.Host == "" {
		return fmt.Errorf("%w: server host is required", ErrInvalidRequest)
	}
	if id := cfg.SSL.ClientCertID; id != "" {
		if _, ok := d.certs[id]; !ok {
			return fmt.Errorf("%w: certificate %q", ErrNotFound, id)
		}
	}
	d.mqtt = cfg
	return nil
}

func generateKey(keyType string) (crypto.Signer, error) {
	switch keyType {
	case "RSA-2048":
		return rsa.GenerateKey(rand.Reader, 2048)
	case "RSA-4096":
		return rsa.GenerateKey(rand.Reader, 4096)
	case "EC-P256":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "EC-P384":
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "EC-P521":
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, keyType)
}

// ParseSubject parses a comma separated distinguished name such as
// "CN=cam01,O=Example,SERIALNUMBER=ACCC8E000001".
func ParseSubject(subject string) (pkix.Name, error) {
	var name pkix.Name
	if strings.TrimSpace(subject) == "" {
		return name, fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}

	for _, rdn := range strings.Split(subject, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(rdn), "=")
		if !ok || value == "" {
			return pkix.Name{}, fmt.Errorf("%w: malformed subject attribute %q", ErrInvalidRequest, rdn)
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "CN":
			name.CommonName = value
		case "O":
			name.Organization = append(name.Organization, value)
		case "OU":
			name.OrganizationalUnit = append(name.OrganizationalUnit, value)
		case "C":
			name.Country = append(name.Country, value)
		case "ST":
			name.Province = append(name.Province, value)
		case "L":
			name.Locality = append(name.Locality, value)
		case "SERIALNUMBER":
			name.SerialNumber = value
		default:
			return pkix.Name{}, fmt.Errorf("%w: unsupported subject attribute %q", ErrInvalidRequest, key)
		}
	}
	return name, nil
}

func splitSANs(sans []string) ([]string, []net.IP) {
	var (
		dnsNames []string
		ips      []net.IP
	)
	for _, san := range sans {
		san = strings.TrimSpace(san)
		if san == "" {
			continue
		}
		if ip := net.ParseIP(san); ip != nil {
			ips = append(ips, ip)
		} else {
			dnsNames = append(dnsNames, san)
		}
	}
	return dnsNames, ips
}

func randomSerial() *big.Int {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return big.NewInt(time.Now().UnixNano())
	}
	return serial
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
