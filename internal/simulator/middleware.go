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
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/correlation"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// RecoveryMiddleware turns a handler panic into a 500 response.
func (s *Server) RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					s.logger.Error("panic recovered",
						"method", r.Method,
						"path", r.URL.Path,
						"error", err)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CorrelationMiddleware carries the caller's correlation ID into the
// request context and echoes it back. Requests without one get a new ID.
func (s *Server) CorrelationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(correlation.Header)
			s.record(Request{Method: r.Method, Path: r.URL.Path, CorrelationID: id})
			if id == "" {
				id = correlation.NewID()
			}

			r = r.WithContext(correlation.WithID(r.Context(), id))
			w.Header().Set(correlation.Header, id)

			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs every request with its status and duration.
func (s *Server) LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)
			logger := logging.FromContext(r.Context(), s.logger)

			logger.Debug("request started",
				"method", r.Method,
				"path", r.URL.Path)

			next.ServeHTTP(wrapped, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start).String())
		})
	}
}

// AuthenticationMiddleware enforces basic auth when credentials are
// configured.
func (s *Server) AuthenticationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.username == "" && s.password == "" {
				next.ServeHTTP(w, r)
				return
			}

			username, password, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
				logging.FromContext(r.Context(), s.logger).Warn("authentication failed",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr)
				w.Header().Set("WWW-Authenticate", `Basic realm="AXIS_SIMULATOR"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
