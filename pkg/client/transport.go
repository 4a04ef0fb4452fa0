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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/correlation"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
	"github.com/jeremyhahn/go-axiscert/pkg/ratelimit"
	"github.com/jeremyhahn/go-axiscert/pkg/trust"
)

const (
	contentTypeJSON = "application/json"
	contentTypeXML  = "application/xml"
)

// transport is the HTTP plumbing shared by every adapter of one device.
type transport struct {
	baseURL    string
	host       string
	httpClient *http.Client
	username   string
	password   string
	limiter    *ratelimit.Limiter
	errCtx     *trust.ErrorContext
	logger     *slog.Logger
}

// do performs one request and returns the raw response. Only failures to
// obtain a response are returned as errors; callers apply checkResponse.
func (t *transport) do(ctx context.Context, protocol Protocol, op, path, method, contentType string, body []byte) (*Response, error) {
	if hasBody(method) && len(bytes.TrimSpace(body)) == 0 {
		return nil, &ProtocolError{
			Protocol: protocol,
			Message:  fmt.Sprintf("%s body is null or empty", bodyFormat(contentType)),
		}
	}

	if err := t.limiter.Wait(ctx, t.host); err != nil {
		return nil, &TransportError{Message: "rate limiter wait aborted", Err: err}
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, &TransportError{Message: "failed to create request", Err: err}
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", contentType)
	}
	t.decorate(ctx, req)

	logger := logging.FromContext(ctx, t.logger)
	logger.Debug("device request",
		"protocol", protocol,
		"operation", op,
		"method", method,
		"path", path)

	start := time.Now()
	resp, err := t.send(req)
	if err != nil {
		metrics.RecordDeviceRequest(op, string(protocol), metrics.StatusError, time.Since(start).Seconds())
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordDeviceRequest(op, string(protocol), metrics.StatusError, time.Since(start).Seconds())
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: "failed to read response body", Err: err}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	status := metrics.StatusSuccess
	if !ok {
		status = metrics.StatusError
	}
	metrics.RecordDeviceRequest(op, string(protocol), status, time.Since(start).Seconds())
	logger.Debug("device response",
		"protocol", protocol,
		"operation", op,
		"status", resp.StatusCode,
		"bytes", len(raw))

	return &Response{OK: ok, Raw: raw, StatusCode: resp.StatusCode}, nil
}

// probe opens a session with the device so the TLS handshake, and with it
// the identity check, runs before any API call. The HTTP status is ignored.
func (t *transport) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/", nil)
	if err != nil {
		return &TransportError{Message: "failed to create request", Err: err}
	}
	t.decorate(ctx, req)

	if err := t.limiter.Wait(ctx, t.host); err != nil {
		return &TransportError{Message: "rate limiter wait aborted", Err: err}
	}

	start := time.Now()
	resp, err := t.send(req)
	if err != nil {
		metrics.RecordDeviceRequest(metrics.OpConnect, "https", metrics.StatusError, time.Since(start).Seconds())
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	metrics.RecordDeviceRequest(metrics.OpConnect, "https", metrics.StatusSuccess, time.Since(start).Seconds())

	logging.FromContext(ctx, t.logger).Debug("device connection established",
		"host", t.host,
		"status", resp.StatusCode)
	return nil
}

func (t *transport) decorate(ctx context.Context, req *http.Request) {
	if t.username != "" || t.password != "" {
		req.SetBasicAuth(t.username, t.password)
	}
	correlation.Apply(ctx, req)
}

// send executes req and classifies a failure to get a response. A TLS
// handshake rejected by the identity verifier becomes an
// IdentityValidationError carrying every recorded reason.
func (t *transport) send(req *http.Request) (*http.Response, error) {
	if t.errCtx != nil {
		t.errCtx.Reset()
	}

	resp, err := t.httpClient.Do(req)
	if err == nil {
		return resp, nil
	}

	var rejection *trust.RejectionError
	if errors.As(err, &rejection) {
		return nil, &IdentityValidationError{Reasons: rejection.Result.Messages(), Err: err}
	}
	if t.errCtx != nil && t.errCtx.HasErrors() {
		return nil, &IdentityValidationError{Reasons: t.errCtx.Errors(), Err: err}
	}
	return nil, &TransportError{Message: NoResponseMessage, Err: err}
}

// checkResponse turns a non-2xx status into a TransportError, appending
// any error the body decodes to, and rejects an empty success body.
func checkResponse(protocol Protocol, resp *Response, decode func([]byte) (*Envelope, error)) error {
	if !resp.OK {
		terr := &TransportError{StatusCode: resp.StatusCode, Message: StatusText(resp.StatusCode)}
		if len(bytes.TrimSpace(resp.Raw)) > 0 {
			if env, err := decode(resp.Raw); err == nil && env.Error != nil {
				terr.Detail = env.Error.Error()
			}
		}
		return terr
	}
	if len(bytes.TrimSpace(resp.Raw)) == 0 {
		return &ProtocolError{Protocol: protocol, Message: "no content returned from HTTP response"}
	}
	return nil
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func bodyFormat(contentType string) string {
	if contentType == contentTypeXML {
		return "XML"
	}
	return "JSON"
}
