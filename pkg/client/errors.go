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
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransport matches failures to exchange a request with the device:
	// connection, DNS, timeout and non-2xx HTTP statuses.
	ErrTransport = errors.New("client: transport error")

	// ErrIdentityValidation matches TLS handshakes rejected because the
	// device identity certificate could not be validated.
	ErrIdentityValidation = errors.New("client: device identity validation failed")

	// ErrAPILogical matches well formed responses whose envelope reports failure.
	ErrAPILogical = errors.New("client: device API returned an error")

	// ErrProtocolInvariant matches responses that violate the protocol shape.
	ErrProtocolInvariant = errors.New("client: protocol invariant violation")

	// ErrPolicyRejection matches requests rejected locally before being sent.
	ErrPolicyRejection = errors.New("client: request rejected by policy")

	// ErrInvalidConfig is returned by New for an unusable configuration.
	ErrInvalidConfig = errors.New("client: invalid configuration")
)

// ErrorKind classifies an error returned by the client.
type ErrorKind string

const (
	KindTransport          ErrorKind = "transport"
	KindIdentityValidation ErrorKind = "identity_validation"
	KindAPILogical         ErrorKind = "api_logical"
	KindProtocolInvariant  ErrorKind = "protocol_invariant"
	KindPolicyRejection    ErrorKind = "policy_rejection"
	KindUnknown            ErrorKind = "unknown"
)

// Classify returns the kind of err.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPolicyRejection):
		return KindPolicyRejection
	case errors.Is(err, ErrIdentityValidation):
		return KindIdentityValidation
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrAPILogical):
		return KindAPILogical
	case errors.Is(err, ErrProtocolInvariant):
		return KindProtocolInvariant
	default:
		return KindUnknown
	}
}

// NoResponseMessage describes a request that never produced an HTTP response.
const NoResponseMessage = "no response received! possible causes: timeouts, no network connectivity, " +
	"DNS resolution failure, SSL issues, firewall configuration"

// TransportError reports a request that failed below the API layer.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Message    string
	// Detail is a decoded API error or SOAP fault carried by a non-2xx body.
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("HTTP request unsuccessful: ")
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// StatusText renders an HTTP status for operators.
func StatusText(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "Bad Request! (400)"
	case http.StatusUnauthorized:
		return "Unauthorized! (401)"
	case http.StatusForbidden:
		return "Forbidden! (403)"
	case http.StatusNotFound:
		return "Not Found! (404)"
	case http.StatusInternalServerError:
		return "Internal Server Error! (500)"
	default:
		return fmt.Sprintf("Unexpected HTTP status! (%d)", code)
	}
}

// IdentityValidationError reports a device whose identity certificate was
// rejected during the TLS handshake. Reasons holds every failed check.
type IdentityValidationError struct {
	Reasons []string
	Err     error
}

func (e *IdentityValidationError) Error() string {
	if len(e.Reasons) == 0 && e.Err != nil {
		return "device identity could not be verified: " + e.Err.Error()
	}
	return "device identity could not be verified: " + strings.Join(e.Reasons, "; ")
}

func (e *IdentityValidationError) Is(target error) bool { return target == ErrIdentityValidation }

func (e *IdentityValidationError) Unwrap() error { return e.Err }

// APIError is a failure reported by the device API inside a well formed
// response. Code and Message are passed through unmodified.
type APIError struct {
	Protocol Protocol
	Code     string
	Message  string
	// Detail is the name of the first SOAP fault detail element.
	Detail string
}

func (e *APIError) Error() string {
	prefix := "API error encountered"
	switch e.Protocol {
	case ProtocolSOAP:
		prefix = "SOAP API error encountered"
	case ProtocolCGI:
		prefix = "CGI API error encountered"
	}
	message := e.Message
	if message == "" {
		message = "(no error reason provided)"
	}
	s := fmt.Sprintf("%s - %s - (Code: %s)", prefix, message, e.Code)
	if e.Detail != "" {
		s += " - (Detail: " + e.Detail + ")"
	}
	return s
}

func (e *APIError) Is(target error) bool { return target == ErrAPILogical }

// ProtocolError reports a response that violates the protocol's shape.
type ProtocolError struct {
	Protocol Protocol
	Message  string
	Err      error
}

func (e *ProtocolError) Error() string {
	s := e.Message
	if e.Protocol != "" {
		s = string(e.Protocol) + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocolInvariant }

func (e *ProtocolError) Unwrap() error { return e.Err }

// PolicyError reports a request rejected by a local business rule.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

func (e *PolicyError) Is(target error) bool { return target == ErrPolicyRejection }

// OperationError names the façade operation that failed.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("client: %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
