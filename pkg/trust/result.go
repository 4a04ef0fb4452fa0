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

// Decision is the outcome of a device identity validation.
type Decision int

const (
	// Accept means the device identity is trusted.
	Accept Decision = iota
	// Reject means validation ran to completion and the identity is not trusted.
	Reject
	// SystemFailure means validation could not run, for example because a
	// trust anchor file was unreadable.
	SystemFailure
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case SystemFailure:
		return "system_failure"
	default:
		return "unknown"
	}
}

// Result is returned by Verifier.Validate. Reasons is populated for Reject,
// Cause for SystemFailure.
type Result struct {
	Decision Decision
	Reasons  []string
	Cause    error
}

// Accepted returns an Accept result.
func Accepted() Result {
	return Result{Decision: Accept}
}

// Rejected returns a Reject result carrying reasons.
func Rejected(reasons ...string) Result {
	return Result{Decision: Reject, Reasons: reasons}
}

// Failed returns a SystemFailure result caused by err.
func Failed(err error) Result {
	return Result{Decision: SystemFailure, Cause: err}
}

// OK reports whether the result is Accept.
func (r Result) OK() bool {
	return r.Decision == Accept
}

// Messages returns the human readable lines describing the result.
func (r Result) Messages() []string {
	if r.Decision == SystemFailure && r.Cause != nil {
		return append([]string{r.Cause.Error()}, r.Reasons...)
	}
	return r.Reasons
}

// Err returns nil for Accept, otherwise a *RejectionError.
func (r Result) Err() error {
	if r.Decision == Accept {
		return nil
	}
	return &RejectionError{Result: r}
}
