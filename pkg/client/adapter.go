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

package client

import (
	"context"
	"fmt"
)

// Protocol identifies one of the device management APIs.
type Protocol string

const (
	// ProtocolREST is the VAPIX certificate management API (JSON).
	ProtocolREST Protocol = "rest"
	// ProtocolSOAP is the legacy certificate management web service (XML).
	ProtocolSOAP Protocol = "soap"
	// ProtocolCGI is the MQTT client CGI (JSON-RPC style).
	ProtocolCGI Protocol = "cgi"
)

// API entry points relative to the device base URL.
const (
	RESTEntryPoint = "/config/rest/cert/v1beta"
	SOAPEntryPoint = "/vapix/services"
	CGIEntryPoint  = "/axis-cgi/mqtt/client.cgi"
)

// Usage is the consumer a certificate is bound to on the device.
type Usage string

const (
	UsageHTTPS Usage = "HTTPS"
	UsageIEEE  Usage = "IEEE802.X"
	UsageMQTT  Usage = "MQTT"
	UsageTrust Usage = "Trust"
	UsageOther Usage = "Other"

	// UsageUnbound marks a client certificate with no binding.
	UsageUnbound = UsageOther
)

// BindingUsages lists the usages that can be bound to a client certificate.
var BindingUsages = []Usage{UsageHTTPS, UsageIEEE, UsageMQTT}

// ParseUsage maps an operator supplied usage name to a Usage.
func ParseUsage(s string) (Usage, error) {
	switch Usage(s) {
	case UsageHTTPS, UsageIEEE, UsageMQTT, UsageTrust, UsageOther:
		return Usage(s), nil
	}
	return "", &PolicyError{Reason: fmt.Sprintf("no certificate usage defined for %q", s)}
}

// Keystore names a key storage backend on the device.
type Keystore string

const (
	// KeystoreTEE is the trusted execution environment.
	KeystoreTEE Keystore = "TEE0"
	// KeystoreSE is the secure element.
	KeystoreSE Keystore = "SE0"
)

// Response is the normalized result of one HTTP exchange with the device.
type Response struct {
	OK         bool
	Raw        []byte
	StatusCode int
}

// EnvelopeStatus is the logical outcome carried by an API envelope.
type EnvelopeStatus string

const (
	StatusSuccess EnvelopeStatus = "success"
	StatusError   EnvelopeStatus = "error"
)

// Envelope is a decoded API response. Payload holds the protocol specific
// success body: the REST "data" member, the CGI "data" member, or the full
// SOAP document.
type Envelope struct {
	Status  EnvelopeStatus
	Payload []byte
	Error   *APIError
}

// Err returns the API error carried by the envelope, if any.
func (e *Envelope) Err() error {
	if e == nil || e.Error == nil {
		return nil
	}
	return e.Error
}

// Adapter translates certificate operations into one wire protocol.
type Adapter interface {
	// Protocol returns the protocol served by the adapter.
	Protocol() Protocol

	// Execute sends body to resource (relative to the protocol entry point)
	// and returns the raw response. Transport failures, non-2xx statuses and
	// empty success bodies are returned as errors.
	Execute(ctx context.Context, op, resource, method string, body []byte) (*Response, error)

	// Decode parses a raw response body into an envelope.
	Decode(raw []byte) (*Envelope, error)
}

// BindingAdapter reads and writes usage bindings.
type BindingAdapter interface {
	Adapter

	// GetBinding returns the alias bound to usage, or "" when unbound.
	GetBinding(ctx context.Context, usage Usage) (string, error)

	// SetBinding binds alias to usage.
	SetBinding(ctx context.Context, usage Usage, alias string) error
}
