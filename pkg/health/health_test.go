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


package health

import (
	"context"
	"errors"
	"testing"

	"github.com/jeremyhahn/go-axiscert/pkg/client"
)

type fakeProber struct {
	keystoreErr error
	bindings    map[client.Usage]string
	bindingErrs map[client.Usage]error
}

func (f *fakeProber) GetDefaultKeystore(ctx context.Context) (client.Keystore, error) {
	if f.keystoreErr != nil {
		return "", f.keystoreErr
	}
	return client.KeystoreTEE, nil
}

func (f *fakeProber) GetUsageBinding(ctx context.Context, usage client.Usage) (string, error) {
	if err := f.bindingErrs[usage]; err != nil {
		return "", err
	}
	return f.bindings[usage], nil
}

func TestRegisterCheck(t *testing.T) {
	checker := NewChecker()

	check := func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	}
	checker.RegisterCheck("b", check)
	checker.RegisterCheck("a", check)

	// Register nil check (should be ignored)
	checker.RegisterCheck("nil", nil)

	checks := checker.GetAllChecks()
	if len(checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checks))
	}
	if checks[0] != "a" || checks[1] != "b" {
		t.Errorf("expected sorted names [a b], got %v", checks)
	}
}

func TestRunSetsNameAndLatency(t *testing.T) {
	checker := NewChecker()
	checker.RegisterCheck("unnamed", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	report := checker.Run(context.Background())
	if report.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.Status)
	}
	if len(report.Checks) != 1 || report.Checks[0].Name != "unnamed" {
		t.Fatalf("unexpected checks: %+v", report.Checks)
	}
	if report.Checks[0].Latency < 0 {
		t.Error("latency should not be negative")
	}
}

func TestDeviceChecks(t *testing.T) {
	dev := &fakeProber{
		bindings: map[client.Usage]string{client.UsageHTTPS: "cam01"},
	}
	checker := NewChecker()
	checker.DeviceChecks(dev)

	report := checker.Run(context.Background())
	if report.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", report.Status)
	}

	want := map[string]string{
		CheckCGI:  "MQTT unbound",
		CheckREST: "default keystore TEE0",
		CheckSOAP: "HTTPS bound to cam01",
	}
	for _, result := range report.Checks {
		if result.Message != want[result.Name] {
			t.Errorf("%s: expected message %q, got %q", result.Name, want[result.Name], result.Message)
		}
	}
}

func TestDeviceChecksDegraded(t *testing.T) {
	dev := &fakeProber{
		bindingErrs: map[client.Usage]error{
			client.UsageMQTT: &client.OperationError{
				Op:  "get_binding",
				Err: &client.TransportError{StatusCode: 404, Message: "Not Found"},
			},
		},
	}
	checker := NewChecker()
	checker.DeviceChecks(dev)

	report := checker.Run(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	for _, result := range report.Checks {
		if result.Name != CheckCGI {
			continue
		}
		if result.Status != StatusUnhealthy {
			t.Errorf("expected cgi unhealthy, got %s", result.Status)
		}
		if result.Kind != client.KindTransport {
			t.Errorf("expected transport kind, got %s", result.Kind)
		}
	}
}

func TestDeviceChecksUnreachable(t *testing.T) {
	err := errors.New("connection refused")
	dev := &fakeProber{
		keystoreErr: err,
		bindingErrs: map[client.Usage]error{
			client.UsageHTTPS: err,
			client.UsageMQTT:  err,
		},
	}
	checker := NewChecker()
	checker.DeviceChecks(dev)

	report := checker.Run(context.Background())
	if report.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", report.Status)
	}
	for _, result := range report.Checks {
		if result.Kind != client.KindUnknown {
			t.Errorf("%s: expected unknown kind, got %s", result.Name, result.Kind)
		}
	}
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"all unhealthy", []Status{StatusUnhealthy, StatusUnhealthy}, StatusUnhealthy},
		{"mixed", []Status{StatusHealthy, StatusUnhealthy}, StatusDegraded},
		{"degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]CheckResult, len(tt.statuses))
			for i, s := range tt.statuses {
				results[i] = CheckResult{Status: s}
			}
			if got := AggregateStatus(results); got != tt.want {
				t.Errorf("AggregateStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}
