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

package trust

import "sync"

// ErrorContext accumulates validation failure reasons for one connection so
// the caller sees every reason a handshake was rejected. It is safe for
// concurrent use; the TLS callback runs on the transport's goroutine.
type ErrorContext struct {
	mu     sync.Mutex
	errors []string
}

// Add records a reason.
func (c *ErrorContext) Add(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, reason)
}

// AddAll records reasons in order.
func (c *ErrorContext) AddAll(reasons []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, reasons...)
}

// Errors returns a copy of the recorded reasons.
func (c *ErrorContext) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.errors))
	copy(out, c.errors)
	return out
}

// HasErrors reports whether any reason was recorded.
func (c *ErrorContext) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors) > 0
}

// Reset discards recorded reasons.
func (c *ErrorContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = nil
}
