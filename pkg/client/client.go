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

// Package client talks to the certificate management APIs of a camera.
//
// Three wire protocols are involved: the REST certificate API for inventory
// and enrollment, the legacy SOAP web service for the HTTPS and IEEE 802.1X
// bindings, and the MQTT client CGI for the MQTT binding. Client hides them
// behind one façade. Every request runs over a TLS session whose handshake
// validates the device identity with a trust.Verifier.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
	"github.com/jeremyhahn/go-axiscert/pkg/ratelimit"
	"github.com/jeremyhahn/go-axiscert/pkg/trust"
)

// DefaultTimeout bounds each request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config describes the target device.
type Config struct {
	// Host is the device address, optionally with a port.
	Host string

	// UseTLS selects https and requires a verifier. Plain http skips
	// device identity validation entirely and is meant for simulators.
	UseTLS bool

	// Username and Password are the VAPIX basic auth credentials.
	Username string
	Password string

	// ExpectedSerial is the SERIALNUMBER subject attribute the device
	// identity certificate must carry.
	ExpectedSerial string

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// TLSMinVersion defaults to TLS 1.2.
	TLSMinVersion uint16

	// RequestsPerMinute paces requests to the device. Zero disables pacing.
	RequestsPerMinute int
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithVerifier validates the device identity during every TLS handshake.
func WithVerifier(v *trust.Verifier) Option {
	return func(c *Client) { c.verifier = v }
}

// WithHTTPClient replaces the HTTP client. The caller is then responsible
// for the TLS configuration of the client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter shares a rate limiter between clients.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBindingAdapter serves usage with adapter instead of the default.
func WithBindingAdapter(usage Usage, adapter BindingAdapter) Option {
	return func(c *Client) { c.overrides[usage] = adapter }
}

// Client is the device API façade. A Client is scoped to one device and
// one job; its methods are not meant to be called concurrently.
type Client struct {
	config      Config
	logger      *slog.Logger
	verifier    *trust.Verifier
	httpClient  *http.Client
	limiter     *ratelimit.Limiter
	errCtx      *trust.ErrorContext

	rest     *RESTAdapter
	soap     *SOAPAdapter
	cgi      *CGIAdapter
	bindings map[Usage]BindingAdapter

	overrides map[Usage]BindingAdapter
}

// New creates a client for the device described by cfg. No request is sent
// until the first operation or Connect.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("%w: device host is required", ErrInvalidConfig)
	}

	c := &Client{
		config:    *cfg,
		errCtx:    &trust.ErrorContext{},
		overrides: make(map[Usage]BindingAdapter),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger)

	if c.config.Timeout <= 0 {
		c.config.Timeout = DefaultTimeout
	}
	if c.config.TLSMinVersion == 0 {
		c.config.TLSMinVersion = tls.VersionTLS12
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(&ratelimit.Config{
			Enabled:           c.config.RequestsPerMinute > 0,
			RequestsPerMinute: c.config.RequestsPerMinute,
		})
	}

	baseURL, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	if !c.config.UseTLS {
		c.logger.Warn("device identity validation disabled on plain http", "host", c.config.Host)
	} else if c.verifier == nil && c.httpClient == nil {
		return nil, fmt.Errorf("%w: tls requires a device identity verifier", ErrInvalidConfig)
	}
	if c.httpClient == nil {
		c.httpClient = c.newHTTPClient()
	}
	c.logger.Debug("device client ready",
		"host", c.config.Host,
		"tls", c.config.UseTLS,
		"paced", c.limiter.Enabled())

	t := &transport{
		baseURL:    baseURL,
		host:       c.config.Host,
		httpClient: c.httpClient,
		username:   c.config.Username,
		password:   c.config.Password,
		limiter:    c.limiter,
		errCtx:     c.errCtx,
		logger:     c.logger,
	}
	c.rest = &RESTAdapter{t: t}
	c.soap = &SOAPAdapter{t: t}
	c.cgi = &CGIAdapter{t: t}

	c.bindings = map[Usage]BindingAdapter{
		UsageHTTPS: c.soap,
		UsageIEEE:  c.soap,
		UsageMQTT:  c.cgi,
	}
	for usage, adapter := range c.overrides {
		c.bindings[usage] = adapter
	}

	return c, nil
}

func (c *Client) baseURL() (string, error) {
	scheme := "http"
	if c.config.UseTLS {
		scheme = "https"
	}
	host := strings.TrimSuffix(strings.TrimSpace(c.config.Host), "/")
	u, err := url.Parse(scheme + "://" + host)
	if err != nil || u.Host == "" || u.Path != "" {
		return "", fmt.Errorf("%w: invalid device host %q", ErrInvalidConfig, c.config.Host)
	}
	return u.String(), nil
}

func (c *Client) newHTTPClient() *http.Client {
	var tlsConfig *tls.Config
	if c.config.UseTLS {
		tlsConfig = c.verifier.TLSConfig(c.config.Host, c.config.ExpectedSerial, c.errCtx)
		tlsConfig.MinVersion = c.config.TLSMinVersion
	}

	return &http.Client{
		Timeout: c.config.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSClientConfig:     tlsConfig,
			TLSHandshakeTimeout: c.config.Timeout,
			MaxIdleConnsPerHost: 2,
		},
	}
}

// Host returns the device address.
func (c *Client) Host() string { return c.config.Host }

// Adapter returns the adapter for protocol.
func (c *Client) Adapter(protocol Protocol) (Adapter, error) {
	switch protocol {
	case ProtocolREST:
		return c.rest, nil
	case ProtocolSOAP:
		return c.soap, nil
	case ProtocolCGI:
		return c.cgi, nil
	}
	return nil, &PolicyError{Reason: fmt.Sprintf("unknown protocol %q", protocol)}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Connect opens a session with the device, validating its identity.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.rest.t.probe(ctx); err != nil {
		return c.fail(ctx, metrics.OpConnect, err)
	}
	return nil
}

// ListCaCertificates returns the trusted CA certificates on the device.
func (c *Client) ListCaCertificates(ctx context.Context) ([]CACertificate, error) {
	var certs []CACertificate
	if err := c.rest.call(ctx, metrics.OpListCACertificates, "/ca_certificates", http.MethodGet, nil, &certs); err != nil {
		return nil, c.fail(ctx, metrics.OpListCACertificates, err)
	}
	return certs, nil
}

// ListCertificates returns the client certificates on the device, each
// marked UsageUnbound.
func (c *Client) ListCertificates(ctx context.Context) ([]DeviceCertificate, error) {
	var certs []DeviceCertificate
	if err := c.rest.call(ctx, metrics.OpListCertificates, "/certificates", http.MethodGet, nil, &certs); err != nil {
		return nil, c.fail(ctx, metrics.OpListCertificates, err)
	}
	for i := range certs {
		certs[i].Binding = UsageUnbound
	}
	return certs, nil
}

// GetDefaultKeystore returns the keystore new keys are created in.
func (c *Client) GetDefaultKeystore(ctx context.Context) (Keystore, error) {
	var keystore Keystore
	if err := c.rest.call(ctx, metrics.OpGetDefaultKeystore, "/settings/keystore", http.MethodGet, nil, &keystore); err != nil {
		return "", c.fail(ctx, metrics.OpGetDefaultKeystore, err)
	}
	if keystore == "" {
		return "", c.fail(ctx, metrics.OpGetDefaultKeystore,
			&ProtocolError{Protocol: ProtocolREST, Message: "device returned no default keystore"})
	}
	return keystore, nil
}

// CreateSelfSignedCertificate has the device generate a key in keystore and
// a self-signed certificate for it under alias.
func (c *Client) CreateSelfSignedCertificate(ctx context.Context, alias string, keyType KeyType, keystore Keystore, subject string, sans []string) error {
	const op = metrics.OpCreateSelfSigned
	if alias == "" {
		return c.fail(ctx, op, &PolicyError{Reason: "certificate alias is required"})
	}
	if !keyType.Supported() {
		return c.fail(ctx, op, &PolicyError{Reason: fmt.Sprintf("unsupported key type %q", keyType)})
	}

	req := dataWrapper{Data: SelfSignedRequest{
		Alias:    alias,
		KeyType:  keyType,
		Keystore: keystore,
		Subject:  subject,
		SANs:     sans,
	}}
	if err := c.rest.call(ctx, op, "/create_certificate", http.MethodPost, req, nil); err != nil {
		return c.fail(ctx, op, err)
	}
	return nil
}

// ObtainCsr returns a PEM CSR generated by the device from the key and
// subject of the certificate stored under alias.
func (c *Client) ObtainCsr(ctx context.Context, alias string) (string, error) {
	const op = metrics.OpObtainCSR
	if alias == "" {
		return "", c.fail(ctx, op, &PolicyError{Reason: "certificate alias is required"})
	}

	var csr string
	resource := "/certificates/" + url.PathEscape(alias) + "/get_csr"
	if err := c.rest.call(ctx, op, resource, http.MethodPost, dataWrapper{Data: struct{}{}}, &csr); err != nil {
		return "", c.fail(ctx, op, err)
	}
	if strings.TrimSpace(csr) == "" {
		return "", c.fail(ctx, op, &ProtocolError{Protocol: ProtocolREST, Message: "device returned an empty CSR"})
	}
	return csr, nil
}

// ReplaceCertificate swaps the certificate stored under alias for pemCert.
// The device keeps the private key bound to alias.
func (c *Client) ReplaceCertificate(ctx context.Context, alias, pemCert string) error {
	const op = metrics.OpReplaceCertificate
	if alias == "" {
		return c.fail(ctx, op, &PolicyError{Reason: "certificate alias is required"})
	}
	if strings.TrimSpace(pemCert) == "" {
		return c.fail(ctx, op, &PolicyError{Reason: "certificate is required"})
	}

	resource := "/certificates/" + url.PathEscape(alias)
	if err := c.rest.call(ctx, op, resource, http.MethodPatch, dataWrapper{Data: certificateBody{Certificate: pemCert}}, nil); err != nil {
		return c.fail(ctx, op, err)
	}
	return nil
}

// AddCaCertificate installs a CA certificate under alias. certificate may be
// PEM, base64 DER or raw DER; end-entity certificates are rejected before
// any request is sent.
func (c *Client) AddCaCertificate(ctx context.Context, alias string, certificate []byte) error {
	const op = metrics.OpAddCACertificate
	if alias == "" {
		return c.fail(ctx, op, &PolicyError{Reason: "certificate alias is required"})
	}
	cert, err := encoding.DecodeCertificate(certificate)
	if err != nil {
		return c.fail(ctx, op, &PolicyError{Reason: "certificate could not be parsed: " + err.Error()})
	}
	if !encoding.IsCA(cert) {
		return c.fail(ctx, op, &PolicyError{Reason: "end-entity certificates cannot be added as trusted CA certificates"})
	}
	pemCert, err := encoding.EncodeCertificatePEM(cert)
	if err != nil {
		return c.fail(ctx, op, err)
	}

	body := dataWrapper{Data: certificateBody{Alias: alias, Certificate: pemCert}}
	if err := c.rest.call(ctx, op, "/ca_certificates", http.MethodPost, body, nil); err != nil {
		return c.fail(ctx, op, err)
	}
	return nil
}

// RemoveCaCertificate deletes the CA certificate stored under alias. When
// certificate is not nil it must be a CA certificate; callers that already
// checked the certificate may pass nil.
func (c *Client) RemoveCaCertificate(ctx context.Context, alias string, certificate *x509.Certificate) error {
	const op = metrics.OpRemoveCACertificate
	if alias == "" {
		return c.fail(ctx, op, &PolicyError{Reason: "certificate alias is required"})
	}
	if certificate != nil && !encoding.IsCA(certificate) {
		return c.fail(ctx, op, &PolicyError{Reason: "end-entity certificates cannot be removed from the trusted CA certificates"})
	}

	resource := "/ca_certificates/" + url.PathEscape(alias)
	if err := c.rest.call(ctx, op, resource, http.MethodDelete, nil, nil); err != nil {
		return c.fail(ctx, op, err)
	}
	return nil
}

// GetUsageBinding returns the alias bound to usage, or "" when unbound.
func (c *Client) GetUsageBinding(ctx context.Context, usage Usage) (string, error) {
	const op = metrics.OpGetBinding
	adapter, err := c.bindingAdapter(usage)
	if err != nil {
		return "", c.fail(ctx, op, err)
	}
	alias, err := adapter.GetBinding(ctx, usage)
	if err != nil {
		return "", c.fail(ctx, op, err)
	}
	logging.FromContext(ctx, c.logger).Debug("usage binding",
		"usage", usage,
		"protocol", adapter.Protocol(),
		"alias", alias)
	return alias, nil
}

// SetUsageBinding binds the certificate stored under alias to usage.
func (c *Client) SetUsageBinding(ctx context.Context, alias string, usage Usage) error {
	const op = metrics.OpSetBinding
	if alias == "" {
		return c.fail(ctx, op, &PolicyError{Reason: "certificate alias is required"})
	}
	adapter, err := c.bindingAdapter(usage)
	if err != nil {
		return c.fail(ctx, op, err)
	}
	if err := adapter.SetBinding(ctx, usage, alias); err != nil {
		return c.fail(ctx, op, err)
	}
	logging.FromContext(ctx, c.logger).Info("usage binding updated",
		"usage", usage,
		"protocol", adapter.Protocol(),
		"alias", alias)
	return nil
}

func (c *Client) bindingAdapter(usage Usage) (BindingAdapter, error) {
	adapter, ok := c.bindings[usage]
	if !ok {
		return nil, &PolicyError{Reason: fmt.Sprintf("certificate usage %q cannot be bound", usage)}
	}
	return adapter, nil
}

// fail records err against op and wraps it with the operation name.
func (c *Client) fail(ctx context.Context, op string, err error) error {
	kind := Classify(err)
	metrics.RecordError(op, string(kind))
	logging.FromContext(ctx, c.logger).Error("device operation failed",
		"host", c.config.Host,
		"operation", op,
		"error_type", kind,
		"error", err)
	return &OperationError{Op: op, Err: err}
}
