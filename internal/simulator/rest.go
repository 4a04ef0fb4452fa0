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
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-axiscert/pkg/encoding"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
)

type restResponse struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *restError `json:"error,omitempty"`
}

type restError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type certificateItem struct {
	Alias       string `json:"alias"`
	Certificate string `json:"certificate"`
	Keystore    string `json:"keystore,omitempty"`
}

type createRequest struct {
	Alias    string   `json:"alias"`
	KeyType  string   `json:"key_type"`
	Keystore string   `json:"keystore"`
	Subject  string   `json:"subject"`
	SANs     []string `json:"subject_alt_names"`
}

func (s *Server) restOK(w http.ResponseWriter, data any) {
	writeJSON(w, restResponse{Status: "success", Data: data}, http.StatusOK)
}

func (s *Server) restFail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.FromContext(r.Context(), s.logger).Warn("device operation failed",
		"operation", op,
		"error", err)
	writeJSON(w, restResponse{
		Status: "error",
		Error:  &restError{Code: errorCode(err), Message: err.Error()},
	}, s.errorStatus)
}

// injected writes the fault configured for op, if any.
func (s *Server) injected(w http.ResponseWriter, op string) bool {
	f, ok := s.device.fault(op)
	if !ok {
		return false
	}
	status := f.Status
	if status == 0 {
		status = s.errorStatus
	}
	writeJSON(w, restResponse{Status: "error", Error: &restError{Code: f.Code, Message: f.Message}}, status)
	return true
}

// decodeData unmarshals the "data" member of a request body into out.
func decodeData(r *http.Request, out any) error {
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", ErrInvalidRequest, err)
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		return fmt.Errorf("%w: data member is required", ErrInvalidRequest)
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("%w: malformed data member: %v", ErrInvalidRequest, err)
	}
	return nil
}

// aliasParam returns the unescaped {alias} route parameter. chi matches on
// the raw path when it differs from the decoded one.
func aliasParam(r *http.Request) string {
	alias := chi.URLParam(r, "alias")
	if unescaped, err := url.PathUnescape(alias); err == nil {
		return unescaped
	}
	return alias
}

func (s *Server) listCACertificatesHandler(w http.ResponseWriter, r *http.Request) {
	const op = metrics.OpListCACertificates
	if s.injected(w, op) {
		return
	}

	cas := s.device.CACertificates()
	items := make([]certificateItem, 0, len(cas))
	for _, ca := range cas {
		pemCert, err := encoding.EncodeCertificatePEM(ca.Cert)
		if err != nil {
			s.restFail(w, r, op, fmt.Errorf("%w: %v", ErrInternal, err))
			return
		}
		items = append(items, certificateItem{Alias: ca.Alias, Certificate: pemCert})
	}
	s.restOK(w, items)
}

func (s *Server) addCACertificateHandler(w http.ResponseWriter, r *http.Request) {
	const op = metrics.OpAddCACertificate
	if s.injected(w, op) {
		return
	}

	var req certificateItem
	if err := decodeData(r, &req); err != nil {
		s.restFail(w, r, op, err)
		return
	}
	cert, err := encoding.DecodeCertificate([]byte(req.Certificate))
	if err != nil {
		s.restFail(w, r, op, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	if err := s.device.AddCACertificate(req.Alias, cert); err != nil {
		s.restFail(w, r, op, err)
		return
	}
	s.restOK(w, nil)
}

func (s *Server) removeCACertificateHandler(w http.ResponseWriter, r *http.Request) {
	const op = metrics.OpRemoveCACertificate
	if s.injected(w, op) {
		return
	}

	if err := s.device.RemoveCACertificate(aliasParam(r)); err != nil {
		s.restFail(w, r, op, err)
		return
	}
	s.restOK(w, nil)
}

func (s *Server) listCertificatesHandler(w http.ResponseWriter, r *http.Request) {
	const op = metrics.OpListCertificates
	if s.injected(w, op) {
		return
	}

	certs := s.device.Certificates()
	items := make([]certificateItem, 0, len(certs))
	for _, c := range certs {
		pemCert, err := encoding.EncodeCertificatePEM(c.Cert)
		if err != nil {
			s.restFail(w, r, op, fmt.Errorf("%w: %v", ErrInternal, err))
			return
		}
		items = append(items, certificateItem{Alias: c.Alias, Certificate: pemCert, Keystore: c.Keystore})
	}
	s.restOK(w, items)
}

func (s *Server) createCertificateHandler(w http.ResponseWriter, r *http.Request) {
	const op = metrics.OpCreateSelfSigned
	if s.injected(w, op) {
		return
	}

	var req createRequest
	if err := decodeData(r, &req); err != nil {
		s.restFail(w, r, op, err)
		return
	}
	if err := s.device.CreateSelfSigned(req.Alias, req.KeyType, req.Keystore, req.Subject, req.SANs); err != nil {
		s.restFail(w, r, op, err)
		return
	}
	logging.FromContext(r.Context(), s.logger).Info("self-signed certificate created",
		"alias", req.Alias,
		"key_type", req.KeyType)
	s.restOK(w, nil)
}

func (s *Server) csrHandler(w http.ResponseWriter, r *http.Request) {
	const op = metrics.OpObtainCSR
	if s.injected(w, op) {
		return
	}

	csr, err := s.device.CSR(aliasParam(r))
	if err != nil {
		s.restFail(w, r, op, err)
		return
	}
	s.restOK(w, csr)
}

func (s *Server) replaceCertificateHandler(w http.ResponseWriter, r *http.Request) {
	const op = metrics.OpReplaceCertificate
	if s.injected(w, op) {
		return
	}

	var req certificateItem
	if err := decodeData(r, &req); err != nil {
		s.restFail(w, r, op, err)
		return
	}
	cert, err := encoding.DecodeCertificate([]byte(req.Certificate))
	if err != nil {
		s.restFail(w, r, op, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	if err := s.device.ReplaceCertificate(aliasParam(r), cert); err != nil {
		s.restFail(w, r, op, err)
		return
	}
	s.restOK(w, nil)
}

func (s *Server) keystoreHandler(w http.ResponseWriter, r *http.Request) {
	if s.injected(w, metrics.OpGetDefaultKeystore) {
		return
	}
	s.restOK(w, s.device.DefaultKeystore())
}
