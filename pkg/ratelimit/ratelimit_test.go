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

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortContext expires well before a paced request would be allowed.
func shortContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestNewDisabled(t *testing.T) {
	for _, cfg := range []*Config{nil, {Enabled: false, RequestsPerMinute: 60}, {Enabled: true}} {
		l := New(cfg)
		require.NotNil(t, l)
		assert.False(t, l.Enabled())
		ctx := shortContext(t)
		for i := 0; i < 100; i++ {
			assert.NoError(t, l.Wait(ctx, "10.0.0.1"))
		}
	}
}

func TestWaitBurst(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 60, Burst: 3})
	require.True(t, l.Enabled())

	ctx := shortContext(t)
	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Wait(ctx, "cam-a"), "request %d within burst", i)
	}
	assert.Error(t, l.Wait(ctx, "cam-a"))

	// Buckets are per device.
	assert.NoError(t, l.Wait(shortContext(t), "cam-b"))
}

func TestWaitHonorsContext(t *testing.T) {
	l := New(&Config{Enabled: true, RequestsPerMinute: 1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "cam"))

	assert.Error(t, l.Wait(shortContext(t), "cam"))
}

func TestNilLimiter(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background(), "cam"))
	assert.False(t, l.Enabled())
}
