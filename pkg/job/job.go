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

// Package job implements the certificate store jobs run against a device:
// inventory, trusted CA management and on-device key reenrollment.
//
// Jobs never return an error. Every outcome is reported as a Result whose
// Status is success, warning or failure, mirroring how an orchestrator
// reports job history.
package job

import (
	"context"
	"crypto/x509"
	"log/slog"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/client"
	"github.com/jeremyhahn/go-axiscert/pkg/correlation"
	"github.com/jeremyhahn/go-axiscert/pkg/logging"
	"github.com/jeremyhahn/go-axiscert/pkg/metrics"
)

// Status is the outcome of a job.
type Status string

const (
	// StatusSuccess indicates the job completed.
	StatusSuccess Status = "success"
	// StatusWarning indicates the job completed without doing everything
	// it was asked to.
	StatusWarning Status = "warning"
	// StatusFailure indicates the job could not complete.
	StatusFailure Status = "failure"
)

// Job names used in logs and metrics.
const (
	NameInventory = "inventory"
	NameAddCA     = "add_ca"
	NameRemoveCA  = "remove_ca"
	NameReenroll  = "reenroll"
)

// Item is one inventoried certificate.
type Item struct {
	Alias        string       `json:"alias"`
	Certificates []string     `json:"certificates"`
	Usage        client.Usage `json:"usage"`
	// PrivateKey is true for client certificates whose key lives on the
	// device.
	PrivateKey bool `json:"private_key"`
}

// Result is the outcome of a job.
type Result struct {
	Job     string `json:"job"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Items   []Item `json:"items,omitempty"`
	// CorrelationID ties the result to the device requests it made.
	CorrelationID string        `json:"correlation_id"`
	Duration      time.Duration `json:"duration"`
}

// OK reports whether the job succeeded without warnings.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}

// DeviceAPI is the set of device operations the jobs use. It is satisfied
// by *client.Client.
type DeviceAPI interface {
	ListCaCertificates(ctx context.Context) ([]client.CACertificate, error)
	ListCertificates(ctx context.Context) ([]client.DeviceCertificate, error)
	GetDefaultKeystore(ctx context.Context) (client.Keystore, error)
	CreateSelfSignedCertificate(ctx context.Context, alias string, keyType client.KeyType, keystore client.Keystore, subject string, sans []string) error
	ObtainCsr(ctx context.Context, alias string) (string, error)
	ReplaceCertificate(ctx context.Context, alias, pemCert string) error
	AddCaCertificate(ctx context.Context, alias string, certificate []byte) error
	RemoveCaCertificate(ctx context.Context, alias string, certificate *x509.Certificate) error
	GetUsageBinding(ctx context.Context, usage client.Usage) (string, error)
	SetUsageBinding(ctx context.Context, alias string, usage client.Usage) error
}

var _ DeviceAPI = (*client.Client)(nil)

// Runner runs jobs against devices.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a job runner. A nil logger selects slog.Default().
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logging.OrDefault(logger)}
}

// begin attaches a correlation ID to ctx and starts the job clock.
func (r *Runner) begin(ctx context.Context, name string) (context.Context, *Result, time.Time) {
	ctx, id := correlation.Ensure(ctx)
	logging.FromContext(ctx, r.logger).Info("job started", "job", name)
	return ctx, &Result{Job: name, Status: StatusSuccess, CorrelationID: id}, time.Now()
}

// finish records the outcome of result.
func (r *Runner) finish(ctx context.Context, result *Result, start time.Time) *Result {
	result.Duration = time.Since(start)
	metrics.RecordJob(result.Job, string(result.Status), result.Duration.Seconds())

	logger := logging.FromContext(ctx, r.logger)
	attrs := []any{
		"job", result.Job,
		"status", result.Status,
		"items", len(result.Items),
		"duration", result.Duration,
	}
	switch result.Status {
	case StatusSuccess:
		logger.Info("job completed", attrs...)
	case StatusWarning:
		logger.Warn("job completed with warnings", append(attrs, "message", result.Message)...)
	default:
		logger.Error("job failed", append(attrs, "message", result.Message)...)
	}
	return result
}

func warn(result *Result, message string) *Result {
	result.Status = StatusWarning
	result.Message = message
	return result
}

func fail(result *Result, message string) *Result {
	result.Status = StatusFailure
	result.Message = message
	return result
}
