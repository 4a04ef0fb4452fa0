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

	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
)

const defaultCGIVersion = "1.0"

type cgiRequest struct {
	APIVersion string          `json:"apiVersion"`
	Method     string          `json:"method"`
	Params     json.RawMessage `json:"params"`
}

type cgiResponse struct {
	APIVersion string     `json:"apiVersion"`
	Method     string     `json:"method"`
	Data       any        `json:"data,omitempty"`
	Error      *restError `json:"error,omitempty"`
}

type mqttState struct {
	State            string `json:"state"`
	ConnectionStatus string `json:"connectionStatus"`
}

type clientStatus struct {
	Status mqttState  `json:"status"`
	Config MQTTConfig `json:"config"`
}

func (s *Server) cgiHandler(w http.ResponseWriter, r *http.Request) {
	var req cgiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.cgiFail(w, r, &req, metrics.OpReadMQTTConfig, fmt.Errorf("%w: malformed JSON body: %v", ErrInvalidRequest, err))
		return
	}
	if req.APIVersion == "" {
		req.APIVersion = defaultCGIVersion
	}

	switch req.Method {
	case "getClientStatus":
		if s.cgiInjected(w, &req, metrics.OpReadMQTTConfig) {
			return
		}
		writeJSON(w, cgiResponse{
			APIVersion: req.APIVersion,
			Method:     req.Method,
			Data: clientStatus{
				Status: mqttState{State: "active", ConnectionStatus: "connected"},
				Config: s.device.MQTT(),
			},
		}, http.StatusOK)

	case "configureClient":
		if s.cgiInjected(w, &req, metrics.OpSetBinding) {
			return
		}
		var cfg MQTTConfig
		if err := json.Unmarshal(req.Params, &cfg); err != nil {
			s.cgiFail(w, r, &req, metrics.OpSetBinding, fmt.Errorf("%w: malformed params: %v", ErrInvalidRequest, err))
			return
		}
		if err := s.device.ConfigureMQTT(cfg); err != nil {
			s.cgiFail(w, r, &req, metrics.OpSetBinding, err)
			return
		}
		logging.FromContext(r.Context(), s.logger).Info("MQTT client configured",
			"host", cfg.Server.Host,
			"client_cert", cfg.SSL.ClientCertID)
		writeJSON(w, cgiResponse{APIVersion: req.APIVersion, Method: req.Method, Data: struct{}{}}, http.StatusOK)

	default:
		s.cgiFail(w, r, &req, metrics.OpReadMQTTConfig, fmt.Errorf("%w: unknown method %q", ErrInvalidRequest, req.Method))
	}
}

func (s *Server) cgiInjected(w http.ResponseWriter, req *cgiRequest, op string) bool {
	f, ok := s.device.fault(op)
	if !ok {
		return false
	}
	status := f.Status
	if status == 0 {
		status = s.errorStatus
	}
	writeJSON(w, cgiResponse{
		APIVersion: req.APIVersion,
		Method:     req.Method,
		Error:      &restError{Code: f.Code, Message: f.Message},
	}, status)
	return true
}

func (s *Server) cgiFail(w http.ResponseWriter, r *http.Request, req *cgiRequest, op string, err error) {
	logging.FromContext(r.Context(), s.logger).Warn("device operation failed",
		"operation", op,
		"error", err)
	writeJSON(w, cgiResponse{
		APIVersion: req.APIVersion,
		Method:     req.Method,
		Error:      &restError{Code: errorCode(err), Message: err.Error()},
	}, s.errorStatus)
}
