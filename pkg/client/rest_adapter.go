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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// RESTAdapter speaks the VAPIX certificate management API:
//
//	{"status":"success","data":...}
//	{"status":"error","error":{"code":...,"message":"..."}}
type RESTAdapter struct {
	t *transport
}

type restEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *wireError      `json:"error"`
}

// wireError is the error member shared by the REST and CGI envelopes.
type wireError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

func (w *wireError) apiError(protocol Protocol) *APIError {
	return &APIError{
		Protocol: protocol,
		Code:     string(bytes.Trim(w.Code, `"`)),
		Message:  w.Message,
	}
}

// Protocol implements Adapter.
func (a *RESTAdapter) Protocol() Protocol { return ProtocolREST }

// Execute implements Adapter.
func (a *RESTAdapter) Execute(ctx context.Context, op, resource, method string, body []byte) (*Response, error) {
	resp, err := a.t.do(ctx, ProtocolREST, op, RESTEntryPoint+resource, method, contentTypeJSON, body)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(ProtocolREST, resp, a.Decode); err != nil {
		return resp, err
	}
	return resp, nil
}

// Decode implements Adapter.
func (a *RESTAdapter) Decode(raw []byte) (*Envelope, error) {
	var env restEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ProtocolError{Protocol: ProtocolREST, Message: "JSON response body is malformed", Err: err}
	}

	switch env.Status {
	case string(StatusSuccess):
		return &Envelope{Status: StatusSuccess, Payload: env.Data}, nil
	case string(StatusError):
		if env.Error == nil {
			return nil, &ProtocolError{Protocol: ProtocolREST, Message: "error envelope without an error member"}
		}
		return &Envelope{Status: StatusError, Error: env.Error.apiError(ProtocolREST)}, nil
	default:
		return nil, &ProtocolError{Protocol: ProtocolREST, Message: fmt.Sprintf("unknown envelope status %q", env.Status)}
	}
}

// call executes a JSON request and decodes the success payload into out.
// A missing or null data member leaves out untouched.
func (a *RESTAdapter) call(ctx context.Context, op, resource, method string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	resp, err := a.Execute(ctx, op, resource, method, body)
	if err != nil {
		return err
	}
	env, err := a.Decode(resp.Raw)
	if err != nil {
		return err
	}
	if err := env.Err(); err != nil {
		return err
	}

	if out == nil || len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return &ProtocolError{Protocol: ProtocolREST, Message: "unexpected data member", Err: err}
	}
	return nil
}
