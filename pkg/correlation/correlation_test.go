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

package correlation

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
	}{
		{name: "background context", ctx: context.Background(), id: "job-1"},
		{name: "nil context", ctx: nil, id: "job-2"},
		{name: "empty id", ctx: context.Background(), id: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithID(tt.ctx, tt.id) //nolint:staticcheck // nil context is part of the contract
			require.NotNil(t, ctx)
			assert.Equal(t, tt.id, FromContext(ctx))
		})
	}
}

func TestFromContextWithoutID(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
	assert.Empty(t, FromContext(nil)) //nolint:staticcheck
}

func TestNewID(t *testing.T) {
	id := NewID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}

func TestEnsure(t *testing.T) {
	ctx, id := Ensure(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))

	again, sameID := Ensure(ctx)
	assert.Equal(t, id, sameID)
	assert.Equal(t, ctx, again)
}

func TestApply(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://camera.local/", nil)
	require.NoError(t, err)

	Apply(context.Background(), req)
	assert.Empty(t, req.Header.Get(Header))

	Apply(WithID(context.Background(), "abc"), req)
	assert.Equal(t, "abc", req.Header.Get(Header))
}
