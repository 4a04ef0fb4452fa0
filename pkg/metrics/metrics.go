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

// Package metrics provides Prometheus instrumentation for device certificate
// operations. It exposes request counters, latency histograms, identity
// validation decisions and job outcomes for the orchestrator.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all orchestrator metrics
	Namespace = "axiscert"

	// Label names
	LabelOperation = "operation"
	LabelProtocol  = "protocol"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelDecision  = "decision"
	LabelPath      = "path"
	LabelJob       = "job"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
	StatusWarning = "warning"
	StatusFailure = "failure"

	// Operation names
	OpConnect             = "connect"
	OpListCACertificates  = "list_ca_certificates"
	OpListCertificates    = "list_certificates"
	OpGetDefaultKeystore  = "get_default_keystore"
	OpCreateSelfSigned    = "create_self_signed"
	OpObtainCSR           = "obtain_csr"
	OpReplaceCertificate  = "replace_certificate"
	OpAddCACertificate    = "add_ca_certificate"
	OpRemoveCACertificate = "remove_ca_certificate"
	OpGetBinding          = "get_binding"
	OpSetBinding          = "set_binding"
	OpReadMQTTConfig      = "read_mqtt_config"
)

var (
	// DeviceRequestsTotal tracks every request sent to a device by operation,
	// protocol (rest, soap, cgi) and outcome.
	DeviceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "device",
			Name:      "requests_total",
			Help:      "Total number of device API requests by operation, protocol, and status",
		},
		[]string{LabelOperation, LabelProtocol, LabelStatus},
	)

	// DeviceRequestDuration tracks device request latency in seconds.
	// Cameras are slow to generate keys, so the buckets reach out to a minute.
	DeviceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "device",
			Name:      "request_duration_seconds",
			Help:      "Duration of device API requests in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{LabelOperation, LabelProtocol},
	)

	// ErrorsTotal tracks failures by operation and error class
	// (transport, identity, api, protocol, policy).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// IdentityValidationsTotal tracks device identity decisions by decision
	// (accept, reject, system_failure) and the path that produced it.
	IdentityValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "identity_validations_total",
			Help:      "Total number of device identity validations by decision and path",
		},
		[]string{LabelDecision, LabelPath},
	)

	// JobsTotal tracks orchestrator job outcomes.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "jobs_total",
			Help:      "Total number of orchestrator jobs by job type and status",
		},
		[]string{LabelJob, LabelStatus},
	)

	// JobDuration tracks orchestrator job duration in seconds.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of orchestrator jobs in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{LabelJob},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordDeviceRequest records a device API request with its duration and status.
//
// Example:
//
//	start := time.Now()
//	err := adapter.Execute(ctx, op, resource, method, body)
//	status := StatusSuccess
//	if err != nil {
//	    status = StatusError
//	}
//	RecordDeviceRequest(OpListCertificates, "rest", status, time.Since(start).Seconds())
func RecordDeviceRequest(operation, protocol, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	DeviceRequestsTotal.WithLabelValues(operation, protocol, status).Inc()
	DeviceRequestDuration.WithLabelValues(operation, protocol).Observe(duration)
}

// RecordError records an error event for an operation.
func RecordError(operation, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordIdentityValidation records the outcome of a device identity check.
func RecordIdentityValidation(decision, path string) {
	if !enabled.Load() {
		return
	}
	IdentityValidationsTotal.WithLabelValues(decision, path).Inc()
}

// RecordJob records the outcome of an orchestrator job.
func RecordJob(job, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	JobsTotal.WithLabelValues(job, status).Inc()
	JobDuration.WithLabelValues(job).Observe(duration)
}

// WriteTextfile writes the default registry in the Prometheus text format to
// path, for pickup by the node exporter textfile collector. The file is
// written atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
