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

// Package ratelimit paces requests sent to devices. Cameras run their
// certificate APIs on small embedded web servers, so bursts from an
// orchestrator sweeping many operations are smoothed per device host.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter implements a token bucket rate limiter keyed by device host.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	enabled  bool
}

// Config holds rate limiter configuration.
type Config struct {
	// Enabled controls whether rate limiting is active.
	Enabled bool `yaml:"enabled"`

	// RequestsPerMinute sets the sustained rate per device.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst allows short bursts above the sustained rate.
	// Defaults to 1.
	Burst int `yaml:"burst"`
}

// New creates a new rate limiter with the given configuration. A nil or
// disabled configuration yields a limiter that never blocks.
func New(config *Config) *Limiter {
	if config == nil || config.RequestsPerMinute <= 0 {
		return &Limiter{limiters: make(map[string]*rate.Limiter)}
	}

	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:    burst,
		enabled:  config.Enabled,
	}
}

func (l *Limiter) limiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[host] = limiter
	}
	return limiter
}

// Wait blocks until a request to host is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if l == nil || !l.enabled {
		return nil
	}
	return l.limiter(host).Wait(ctx)
}

// Enabled reports whether the limiter paces requests.
func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}
