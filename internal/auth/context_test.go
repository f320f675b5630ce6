// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestWithAPIKeyScopesBrand(t *testing.T) {
	id := uuid.New()
	ctx := WithAPIKey(context.Background(), APIKey{ID: id, BrandID: "brand-42", MaxRequestsPerMin: 10})

	gotID, ok := APIKeyIDFromContext(ctx)
	if !ok || gotID != id {
		t.Fatalf("expected api key id %s got %s (ok=%v)", id, gotID, ok)
	}
	brandID, ok := BrandIDFromContext(ctx)
	if !ok || brandID != "brand-42" {
		t.Fatalf("expected brand-42 got %q (ok=%v)", brandID, ok)
	}
}

func TestWithAPIKeyPlatformKeyHasNoBrand(t *testing.T) {
	ctx := WithAPIKey(context.Background(), APIKey{ID: uuid.New()})
	if _, ok := BrandIDFromContext(ctx); ok {
		t.Fatal("expected platform key to carry no brand scope")
	}
}

func TestAPIKeyFromContextRejectsNilID(t *testing.T) {
	ctx := WithAPIKey(context.Background(), APIKey{})
	if _, ok := APIKeyFromContext(ctx); ok {
		t.Fatal("expected nil api key id to be rejected")
	}
}

func TestScopeBrandID(t *testing.T) {
	scoped := WithBrandID(context.Background(), "brand-42")

	cases := []struct {
		name      string
		ctx       context.Context
		requested string
		want      string
		wantErr   error
	}{
		{name: "unscoped passes through", ctx: context.Background(), requested: "brand-7", want: "brand-7"},
		{name: "unscoped empty means global", ctx: context.Background(), requested: "", want: ""},
		{name: "scoped defaults to own brand", ctx: scoped, requested: "", want: "brand-42"},
		{name: "scoped same brand", ctx: scoped, requested: " brand-42 ", want: "brand-42"},
		{name: "scoped other brand", ctx: scoped, requested: "brand-7", wantErr: ErrBrandOutOfScope},
	}

	for _, tc := range cases {
		got, err := ScopeBrandID(tc.ctx, tc.requested)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected error %v got %v", tc.name, tc.wantErr, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.want, got)
		}
	}
}
