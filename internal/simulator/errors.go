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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

var (
	ErrInvalidRequest      = errors.New("simulator: invalid request")
	ErrNotFound            = errors.New("simulator: not found")
	ErrAlreadyExists       = errors.New("simulator: already exists")
	ErrNotCA               = errors.New("simulator: certificate is not a CA certificate")
	ErrKeyMismatch         = errors.New("simulator: certificate does not match the stored key")
	ErrUnsupportedKeyType  = errors.New("simulator: unsupported key type")
	ErrUnsupportedKeystore = errors.New("simulator: unsupported keystore")
	ErrInternal            = errors.New("simulator: internal error")
)

// Error codes reported in REST and CGI error envelopes.
const (
	CodeInvalidParameter = 2001
	CodeNotFound         = 2004
	CodeAlreadyExists    = 2005
	CodeNotCA            = 2006
	CodeKeyMismatch      = 2007
	CodeUnsupported      = 2008
	CodeInternal         = 1000
)

func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrNotCA):
		return CodeNotCA
	case errors.Is(err, ErrKeyMismatch):
		return CodeKeyMismatch
	case errors.Is(err, ErrUnsupportedKeyType),
		errors.Is(err, ErrUnsupportedKeystore):
		return CodeUnsupported
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidParameter
	default:
		return CodeInternal
	}
}

// soapDetail names the Fault detail element for err.
func soapDetail(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "CertificateNotFound"
	case errors.Is(err, ErrInvalidRequest):
		return "InvalidArgs"
	default:
		return "InternalError"
	}
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeXML(w http.ResponseWriter, body string, statusCode int) {
	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("failed to write SOAP response", "error", err)
	}
}
