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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
)

// CGIAdapter speaks the MQTT client CGI used for the MQTT binding. A
// non-null "error" member is the only error signal.
type CGIAdapter struct {
	t *transport
}

type cgiEnvelope struct {
	APIVersion string          `json:"apiVersion"`
	Method     string          `json:"method"`
	Data       json.RawMessage `json:"data"`
	Error      *wireError      `json:"error"`
}

// MQTTServer is the broker a camera connects to.
type MQTTServer struct {
	Protocol string `json:"protocol,omitempty"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
}

// MQTTSSL holds the TLS settings of the MQTT client.
type MQTTSSL struct {
	ValidateServerCert bool   `json:"validateServerCert"`
	ClientCertID       string `json:"clientCertID,omitempty"`
}

// MQTTConfig is the MQTT client configuration reported by the device.
type MQTTConfig struct {
	Server       MQTTServer `json:"server"`
	ClientID     string     `json:"clientId"`
	CleanSession bool       `json:"cleanSession"`
	SSL          MQTTSSL    `json:"ssl"`
}

// MQTTStatus is the "data" member of a getClientStatus response.
type MQTTStatus struct {
	APIVersion string     `json:"-"`
	Config     MQTTConfig `json:"config"`
}

type mqttConfigureRequest struct {
	APIVersion string     `json:"apiVersion"`
	Method     string     `json:"method"`
	Params     MQTTConfig `json:"params"`
}

// Protocol implements Adapter.
func (a *CGIAdapter) Protocol() Protocol { return ProtocolCGI }

// Execute implements Adapter.
func (a *CGIAdapter) Execute(ctx context.Context, op, resource, method string, body []byte) (*Response, error) {
	resp, err := a.t.do(ctx, ProtocolCGI, op, CGIEntryPoint+resource, method, contentTypeJSON, body)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(ProtocolCGI, resp, a.Decode); err != nil {
		return resp, err
	}
	return resp, nil
}

// Decode implements Adapter.
func (a *CGIAdapter) Decode(raw []byte) (*Envelope, error) {
	var env cgiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ProtocolError{Protocol: ProtocolCGI, Message: "JSON response body is malformed", Err: err}
	}
	if env.Error != nil {
		return &Envelope{Status: StatusError, Payload: env.Data, Error: env.Error.apiError(ProtocolCGI)}, nil
	}
	return &Envelope{Status: StatusSuccess, Payload: env.Data}, nil
}

// ReadStatus fetches the MQTT client status and configuration.
func (a *CGIAdapter) ReadStatus(ctx context.Context) (*MQTTStatus, error) {
	body, err := loadTemplate(templateGetMQTT)
	if err != nil {
		return nil, err
	}
	resp, err := a.Execute(ctx, metrics.OpReadMQTTConfig, "", http.MethodPost, body)
	if err != nil {
		return nil, err
	}

	var env cgiEnvelope
	if err := json.Unmarshal(resp.Raw, &env); err != nil {
		return nil, &ProtocolError{Protocol: ProtocolCGI, Message: "JSON response body is malformed", Err: err}
	}
	if env.Error != nil {
		return nil, env.Error.apiError(ProtocolCGI)
	}

	status := &MQTTStatus{APIVersion: env.APIVersion}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, status); err != nil {
			return nil, &ProtocolError{Protocol: ProtocolCGI, Message: "unexpected data member", Err: err}
		}
	}
	return status, nil
}

// GetBinding implements BindingAdapter. An absent or empty
// ssl.clientCertID means no certificate is bound.
func (a *CGIAdapter) GetBinding(ctx context.Context, usage Usage) (string, error) {
	if usage != UsageMQTT {
		return "", &PolicyError{Reason: fmt.Sprintf("usage %q is not served by the CGI API", usage)}
	}
	status, err := a.ReadStatus(ctx)
	if err != nil {
		return "", err
	}
	if status.Config.SSL.ClientCertID == "" {
		logging.FromContext(ctx, a.t.logger).Debug("no certificate bound", "usage", usage)
	}
	return status.Config.SSL.ClientCertID, nil
}

// SetBinding implements BindingAdapter. The broker settings are not known
// to the caller, so the current configuration is read first and written
// back with the new client certificate. There is no version field to
// compare against: a change made on the device between the two requests
// is overwritten.
func (a *CGIAdapter) SetBinding(ctx context.Context, usage Usage, alias string) error {
	if usage != UsageMQTT {
		return &PolicyError{Reason: fmt.Sprintf("usage %q is not served by the CGI API", usage)}
	}

	status, err := a.ReadStatus(ctx)
	if err != nil {
		return err
	}
	logging.FromContext(ctx, a.t.logger).Debug("read MQTT client configuration",
		"api_version", status.APIVersion,
		"host", status.Config.Server.Host,
		"client_id", status.Config.ClientID,
		"previous_alias", status.Config.SSL.ClientCertID)

	body, err := buildConfigureRequest(status, alias)
	if err != nil {
		return err
	}
	resp, err := a.Execute(ctx, metrics.OpSetBinding, "", http.MethodPost, body)
	if err != nil {
		return err
	}
	env, err := a.Decode(resp.Raw)
	if err != nil {
		return err
	}
	return env.Err()
}

// buildConfigureRequest merges the device's current settings and alias into
// the configureClient template.
func buildConfigureRequest(status *MQTTStatus, alias string) ([]byte, error) {
	tmpl, err := loadTemplate(templateSetMQTT)
	if err != nil {
		return nil, err
	}
	var req mqttConfigureRequest
	if err := json.Unmarshal(tmpl, &req); err != nil {
		return nil, fmt.Errorf("client: request template %s: %w", templateSetMQTT, err)
	}

	current := status.Config
	if status.APIVersion != "" {
		req.APIVersion = status.APIVersion
	}
	req.Params.Server.Host = current.Server.Host
	if current.Server.Protocol != "" {
		req.Params.Server.Protocol = current.Server.Protocol
	}
	req.Params.Server.Port = current.Server.Port
	req.Params.ClientID = current.ClientID
	req.Params.CleanSession = current.CleanSession
	req.Params.SSL.ValidateServerCert = current.SSL.ValidateServerCert
	req.Params.SSL.ClientCertID = alias

	return json.Marshal(req)
}
