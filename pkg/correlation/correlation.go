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

// Package correlation carries a per-job identifier through context so that
// every device request and log line emitted for one orchestrator job can be
// tied together.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	// IDKey is the context key for the job correlation ID
	IDKey contextKey = "correlation-id"

	// Header is the HTTP header sent to devices with the correlation ID
	Header = "X-Correlation-ID"

	// LogKey is the slog attribute name used for the correlation ID
	LogKey = "correlation_id"
)

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, IDKey, id)
}

// FromContext returns the correlation ID in ctx, or an empty string.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(IDKey).(string); ok {
		return id
	}
	return ""
}

// NewID generates a new UUID v4 correlation ID.
func NewID() string {
	return uuid.New().String()
}

// Ensure returns ctx unchanged when it already carries a correlation ID,
// otherwise a derived context with a freshly generated one. The ID in effect
// is returned alongside.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}

// Apply sets the correlation header on req when ctx carries an ID.
func Apply(ctx context.Context, req *http.Request) {
	if id := FromContext(ctx); id != "" {
		req.Header.Set(Header, id)
	}
}
