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

// Package pam resolves credential references into secret values.
//
// A reference has the form scheme:ref, for example env:AXIS_PASSWORD,
// vault:secret/cameras/lobby#password or azkv:camera-admin. Values whose
// prefix is not a registered scheme are literals and are returned
// unchanged, so plain passwords keep working.
package pam

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jeremyhahn/go-axiscert/pkg/logging"
)

var (
	// ErrInvalidReference is returned for a reference a resolver cannot parse.
	ErrInvalidReference = errors.New("pam: invalid secret reference")

	// ErrSecretNotFound is returned when the referenced secret does not exist.
	ErrSecretNotFound = errors.New("pam: secret not found")

	// ErrUnknownScheme is returned by Schemes.Register for an empty scheme.
	ErrUnknownScheme = errors.New("pam: unknown scheme")
)

// Resolver turns a reference into a secret value. The scheme prefix has
// already been removed when a Resolver is reached through Schemes.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, ref string) (string, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// Schemes dispatches scheme:ref references to registered resolvers.
type Schemes struct {
	resolvers map[string]Resolver
}

// NewSchemes creates a dispatcher with the env scheme registered.
func NewSchemes() *Schemes {
	s := &Schemes{resolvers: make(map[string]Resolver)}
	s.resolvers[SchemeEnv] = &EnvResolver{}
	return s
}

// Register adds or replaces the resolver for scheme.
func (s *Schemes) Register(scheme string, r Resolver) error {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" || r == nil {
		return fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	s.resolvers[scheme] = r
	return nil
}

// Registered returns the registered scheme names in order.
func (s *Schemes) Registered() []string {
	names := make([]string, 0, len(s.resolvers))
	for name := range s.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve implements Resolver.
func (s *Schemes) Resolve(ctx context.Context, value string) (string, error) {
	scheme, ref, ok := strings.Cut(value, ":")
	if !ok {
		return value, nil
	}
	r, ok := s.resolvers[strings.ToLower(scheme)]
	if !ok {
		return value, nil
	}
	secret, err := r.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("pam: resolve %s reference: %w", scheme, err)
	}
	return secret, nil
}

// ResolveField resolves value for the named configuration field. Only the
// field name is logged.
func ResolveField(ctx context.Context, r Resolver, name, value string) (string, error) {
	if value == "" || r == nil {
		return value, nil
	}
	logger := logging.FromContext(ctx, nil)
	secret, err := r.Resolve(ctx, value)
	if err != nil {
		logger.Error("failed to resolve secret", "field", name, "error", err)
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if secret != value {
		logger.Debug("resolved secret reference", "field", name)
	}
	return secret, nil
}
