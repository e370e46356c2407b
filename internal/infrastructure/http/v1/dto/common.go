// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"strings"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
)

// PageQuery holds list parameters shared by every list endpoint.
type PageQuery struct {
	Search  string `form:"search"`
	OrderBy string `form:"orderBy"`
	Limit   int    `form:"limit" binding:"omitempty,min=0,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ParseID parses a required id field.
func ParseID(field, raw string) (id.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return id.ID{}, apperror.NewInvalidArgument(field + " is required")
	}
	v, err := id.Parse(raw)
	if err != nil {
		return id.ID{}, apperror.NewInvalidArgument("invalid "+field+" format").WithDetail(field, raw)
	}
	return v, nil
}

// ParseOptionalID parses an optional id field; nil and empty mean absent.
func ParseOptionalID(field string, raw *string) (*id.ID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v, err := ParseID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
