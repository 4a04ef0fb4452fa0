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

package pam

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SchemeEnv selects environment variable references.
const SchemeEnv = "env"

// EnvResolver reads secrets from environment variables.
type EnvResolver struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Resolve implements Resolver. An unset variable is ErrSecretNotFound; a
// variable set to the empty string resolves to "".
func (e *EnvResolver) Resolve(_ context.Context, ref string) (string, error) {
	name := strings.TrimSpace(ref)
	if name == "" {
		return "", fmt.Errorf("%w: empty environment variable name", ErrInvalidReference)
	}
	lookup := e.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrSecretNotFound, name)
	}
	return value, nil
}
