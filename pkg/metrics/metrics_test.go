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

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEnabled(t *testing.T) {
	assert.True(t, IsEnabled(), "metrics should be enabled by default")

	Disable()
	assert.False(t, IsEnabled())

	Enable()
	assert.True(t, IsEnabled())
}

func TestRecordDeviceRequest(t *testing.T) {
	Enable()
	DeviceRequestsTotal.Reset()
	DeviceRequestDuration.Reset()

	RecordDeviceRequest(OpListCertificates, "rest", StatusSuccess, 0.2)
	assert.Equal(t, 1, testutil.CollectAndCount(DeviceRequestsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(DeviceRequestDuration))

	RecordDeviceRequest(OpGetBinding, "soap", StatusError, 0.1)
	assert.Equal(t, 2, testutil.CollectAndCount(DeviceRequestsTotal))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(DeviceRequestsTotal.WithLabelValues(OpGetBinding, "soap", StatusError)))
}

func TestRecordDeviceRequestWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()
	DeviceRequestsTotal.Reset()

	RecordDeviceRequest(OpListCertificates, "rest", StatusSuccess, 0.2)
	assert.Equal(t, 0, testutil.CollectAndCount(DeviceRequestsTotal))
}

func TestRecordError(t *testing.T) {
	Enable()
	ErrorsTotal.Reset()

	RecordError(OpAddCACertificate, "policy")
	RecordError(OpAddCACertificate, "policy")
	RecordError(OpSetBinding, "api")

	assert.Equal(t, 2, testutil.CollectAndCount(ErrorsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpAddCACertificate, "policy")))
}

func TestRecordIdentityValidation(t *testing.T) {
	Enable()
	IdentityValidationsTotal.Reset()

	RecordIdentityValidation("accept", "anchor")
	RecordIdentityValidation("reject", "system")

	assert.Equal(t, 2, testutil.CollectAndCount(IdentityValidationsTotal))
}

func TestRecordJob(t *testing.T) {
	Enable()
	JobsTotal.Reset()
	JobDuration.Reset()

	RecordJob("inventory", StatusWarning, 1.5)

	assert.Equal(t, float64(1), testutil.ToFloat64(JobsTotal.WithLabelValues("inventory", StatusWarning)))
	assert.Equal(t, 1, testutil.CollectAndCount(JobDuration))
}

func TestWriteTextfile(t *testing.T) {
	Enable()
	RecordJob("reenrollment", StatusSuccess, 3)

	path := filepath.Join(t.TempDir(), "axiscert.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "axiscert_jobs_total"))
}
