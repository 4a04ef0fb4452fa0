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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        string
	Header      http.Header
}

// mockDevice records every request before handing it to mux.
type mockDevice struct {
	mu       sync.Mutex
	requests []recordedRequest
	mux      *http.ServeMux
	server   *httptest.Server
}

func newMockDevice(t *testing.T) *mockDevice {
	t.Helper()
	d := &mockDevice{mux: http.NewServeMux()}
	d.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		d.mu.Lock()
		d.requests = append(d.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.EscapedPath(),
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(body),
			Header:      r.Header.Clone(),
		})
		d.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		d.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(d.server.Close)
	return d
}

func (d *mockDevice) handle(pattern, contentType, body string) {
	d.handleStatus(pattern, http.StatusOK, contentType, body)
}

func (d *mockDevice) handleStatus(pattern string, status int, contentType, body string) {
	d.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (d *mockDevice) recorded() []recordedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]recordedRequest(nil), d.requests...)
}

func (d *mockDevice) last(t *testing.T) recordedRequest {
	t.Helper()
	reqs := d.recorded()
	require.NotEmpty(t, reqs, "no request reached the device")
	return reqs[len(reqs)-1]
}

func (d *mockDevice) host() string {
	return strings.TrimPrefix(d.server.URL, "http://")
}

func (d *mockDevice) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	c, err := New(&Config{
		Host:     d.host(),
		Username: "root",
		Password: "pass",
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

const (
	jsonType = "application/json"
	xmlType  = "application/xml"
)
