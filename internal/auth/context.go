// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrBrandOutOfScope is returned when a brand-scoped caller names another brand.
var ErrBrandOutOfScope = errors.New("brand outside caller scope")

type apiKeyContextKey struct{}
type brandIDContextKey struct{}

var ctxAPIKeyKey apiKeyContextKey
var ctxBrandIDKey brandIDContextKey

// APIKey is the authenticated caller. An empty BrandID marks a platform-wide
// key; otherwise every call is scoped to that brand (tenant).
type APIKey struct {
	ID                uuid.UUID
	BrandID           string
	MaxRequestsPerMin int
}

// WithAPIKey stores the resolved API key and its tenant on the request context.
func WithAPIKey(ctx context.Context, key APIKey) context.Context {
	ctx = context.WithValue(ctx, ctxAPIKeyKey, key)
	if brandID := strings.TrimSpace(key.BrandID); brandID != "" {
		ctx = context.WithValue(ctx, ctxBrandIDKey, brandID)
	}
	return ctx
}

// WithBrandID scopes ctx to a tenant without an API key, e.g. for internal callers.
func WithBrandID(ctx context.Context, brandID string) context.Context {
	return context.WithValue(ctx, ctxBrandIDKey, strings.TrimSpace(brandID))
}

// APIKeyFromContext reads the resolved API key and limits from context.
func APIKeyFromContext(ctx context.Context) (APIKey, bool) {
	v := ctx.Value(ctxAPIKeyKey)
	key, ok := v.(APIKey)
	if !ok || key.ID == uuid.Nil {
		return APIKey{}, false
	}
	return key, true
}

// APIKeyIDFromContext reads the authenticated key id from context.
func APIKeyIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	key, ok := APIKeyFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return key.ID, true
}

// BrandIDFromContext reports the tenant the caller is scoped to, if any.
func BrandIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxBrandIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ScopeBrandID resolves the brand a call operates on. Unscoped callers get
// requested back unchanged. Scoped callers get their own brand, and naming a
// different one fails with ErrBrandOutOfScope.
func ScopeBrandID(ctx context.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	scoped, ok := BrandIDFromContext(ctx)
	if !ok {
		return requested, nil
	}
	if requested != "" && requested != scoped {
		return "", ErrBrandOutOfScope
	}
	return scoped, nil
}
