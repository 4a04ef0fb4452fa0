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


// Package health probes the three management APIs of a device and
// aggregates the outcome into a single report.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-axiscert/pkg/client"
)

// Status represents the health status of a device API.
type Status string

const (
	// StatusHealthy indicates the API answered normally.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the API failed.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates some APIs answered and others failed.
	StatusDegraded Status = "degraded"
)

// Check names registered by DeviceChecks.
const (
	CheckREST = "rest"
	CheckSOAP = "soap"
	CheckCGI  = "cgi"
)

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Name is the identifier for this health check.
	Name string `json:"name"`
	// Status is the health status of the API.
	Status Status `json:"status"`
	// Message provides additional context about the status.
	Message string `json:"message,omitempty"`
	// Latency is how long the check took to execute.
	Latency time.Duration `json:"latency"`
	// Error contains error details if the check failed.
	Error string `json:"error,omitempty"`
	// Kind classifies Error.
	Kind client.ErrorKind `json:"kind,omitempty"`
}

// Report is the aggregated outcome of every registered check.
type Report struct {
	Status Status        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// CheckFunc performs a health check.
type CheckFunc func(ctx context.Context) CheckResult

// Prober is the subset of the device API the checks use. It is satisfied
// by *client.Client.
type Prober interface {
	GetDefaultKeystore(ctx context.Context) (client.Keystore, error)
	GetUsageBinding(ctx context.Context, usage client.Usage) (string, error)
}

var _ Prober = (*client.Client)(nil)

// Checker runs named checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker creates a new health checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
	}
}

// RegisterCheck adds a health check with the given name.
// If a check with this name already exists, it will be replaced.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// GetAllChecks returns the names of all registered checks, sorted.
func (c *Checker) GetAllChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the checks in name order. They share the device session,
// so they run one at a time.
func (c *Checker) Run(ctx context.Context) *Report {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		start := time.Now()
		result := checks[name](ctx)
		result.Latency = time.Since(start)
		// Ensure name is set even if check doesn't set it
		if result.Name == "" {
			result.Name = name
		}
		results = append(results, result)
	}

	return &Report{
		Status: AggregateStatus(results),
		Checks: results,
	}
}

// DeviceChecks registers one check per device API: the certificate REST
// API through the default keystore, the SOAP web services through the
// HTTPS binding and the MQTT client CGI through the MQTT binding.
func (c *Checker) DeviceChecks(dev Prober) {
	c.RegisterCheck(CheckREST, func(ctx context.Context) CheckResult {
		keystore, err := dev.GetDefaultKeystore(ctx)
		return probeResult(CheckREST, "default keystore "+string(keystore), err)
	})
	c.RegisterCheck(CheckSOAP, func(ctx context.Context) CheckResult {
		alias, err := dev.GetUsageBinding(ctx, client.UsageHTTPS)
		return probeResult(CheckSOAP, bindingMessage(client.UsageHTTPS, alias), err)
	})
	c.RegisterCheck(CheckCGI, func(ctx context.Context) CheckResult {
		alias, err := dev.GetUsageBinding(ctx, client.UsageMQTT)
		return probeResult(CheckCGI, bindingMessage(client.UsageMQTT, alias), err)
	})
}

func probeResult(name, message string, err error) CheckResult {
	if err != nil {
		return CheckResult{
			Name:   name,
			Status: StatusUnhealthy,
			Error:  err.Error(),
			Kind:   client.Classify(err),
		}
	}
	return CheckResult{Name: name, Status: StatusHealthy, Message: message}
}

func bindingMessage(usage client.Usage, alias string) string {
	if alias == "" {
		return string(usage) + " unbound"
	}
	return string(usage) + " bound to " + alias
}

// AggregateStatus returns the overall status based on check results.
// All healthy is healthy, all unhealthy is unhealthy and any mix is
// degraded. No results is healthy.
func AggregateStatus(results []CheckResult) Status {
	healthy, unhealthy := 0, 0
	for _, result := range results {
		switch result.Status {
		case StatusHealthy:
			healthy++
		case StatusUnhealthy:
			unhealthy++
		}
	}

	switch {
	case unhealthy > 0 && unhealthy == len(results):
		return StatusUnhealthy
	case healthy == len(results):
		return StatusHealthy
	default:
		return StatusDegraded
	}
}
