// Package tenant carries the resolved tenant (company) through the request.
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type ctxKey int

const tenantKey ctxKey = iota

// ErrInvalidTenantID is returned by Validate for ids that are not UUIDs.
var ErrInvalidTenantID = errors.New("invalid tenant id")

// WithTenantID stores the tenant id in context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// GetTenantID returns tenant ID or empty string.
func GetTenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantKey).(string)
	return v
}

// Validate checks that a raw tenant id is a UUID and returns it normalized.
func Validate(raw string) (string, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidTenantID
	}
	return parsed.String(), nil
}
