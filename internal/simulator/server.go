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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
)

// Device API entry points.
const (
	RESTBasePath = "/config/rest/cert/v1beta"
	SOAPPath     = "/vapix/services"
	CGIPath      = "/axis-cgi/mqtt/client.cgi"
)

// Config holds the simulator server configuration.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:8443)
	Addr string

	// Device is the simulated camera state (default: an empty device)
	Device *Device

	// Username and Password enable basic auth when either is set
	Username string
	Password string

	// ErrorStatus is the HTTP status sent with API-level errors and SOAP
	// faults (default: 200)
	ErrorStatus int

	// TLSConfig enables HTTPS (optional)
	TLSConfig *tls.Config

	// Logger is the structured logger (optional, defaults to slog.Default)
	Logger *slog.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Request is one request received by the simulator.
type Request struct {
	Method        string
	Path          string
	CorrelationID string
}

// Server serves a simulated device over HTTP or HTTPS.
type Server struct {
	server      *http.Server
	router      *chi.Mux
	device      *Device
	username    string
	password    string
	errorStatus int
	tlsConfig   *tls.Config
	logger      *slog.Logger

	mu       sync.Mutex
	requests []Request
}

// NewServer creates a simulator server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8443"
	}
	if cfg.Device == nil {
		cfg.Device = NewDevice("")
	}
	if cfg.ErrorStatus == 0 {
		cfg.ErrorStatus = http.StatusOK
	}
	if cfg.ErrorStatus < 100 || cfg.ErrorStatus > 599 {
		return nil, fmt.Errorf("invalid error status %d", cfg.ErrorStatus)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s := &Server{
		device:      cfg.Device,
		username:    cfg.Username,
		password:    cfg.Password,
		errorStatus: cfg.ErrorStatus,
		tlsConfig:   cfg.TLSConfig,
		logger:      logging.OrDefault(cfg.Logger),
	}
	s.router = s.setupRouter()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}
	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(s.AuthenticationMiddleware())

	r.Get("/", s.rootHandler)

	r.Route(RESTBasePath, func(r chi.Router) {
		r.Get("/ca_certificates", s.listCACertificatesHandler)
		r.Post("/ca_certificates", s.addCACertificateHandler)
		r.Delete("/ca_certificates/{alias}", s.removeCACertificateHandler)

		r.Get("/certificates", s.listCertificatesHandler)
		r.Patch("/certificates/{alias}", s.replaceCertificateHandler)
		r.Post("/certificates/{alias}/get_csr", s.csrHandler)
		r.Post("/create_certificate", s.createCertificateHandler)

		r.Get("/settings/keystore", s.keystoreHandler)
	})

	r.Post(SOAPPath, s.soapHandler)
	r.Post(CGIPath, s.cgiHandler)

	return r
}

// Handler returns the root handler, for use with httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Device returns the simulated device.
func (s *Server) Device() *Device {
	return s.device
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) record(req Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	if s.tlsConfig != nil {
		s.logger.Info("starting HTTPS device simulator", "addr", s.server.Addr)
		if err := s.server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
		return nil
	}

	s.logger.Info("starting HTTP device simulator", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down device simulator")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("AXIS device simulator\n"))
}
