// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// --- Pagination ---

// PaginationRequest contains pagination parameters.
type PaginationRequest struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Offset calculates the offset of the requested page (defaults applied).
func (p PaginationRequest) Offset() int {
	page, limit := p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return (page - 1) * limit
}

// ListResponse wraps list results that carry a total.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Parsing helpers ---

// ParseID parses a required identifier field.
func ParseID(field, raw string) (id.ID, error) {
	v, err := id.Parse(raw)
	if err != nil || id.IsNil(v) {
		return id.Nil(), apperror.NewValidation("invalid " + field).WithDetail("field", field)
	}
	return v, nil
}

// ParseOptionalID parses an identifier that may be empty.
func ParseOptionalID(field, raw string) (*id.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := ParseID(field, raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseOptionalTime parses an RFC 3339 timestamp or a plain date.
func ParseOptionalTime(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperror.NewValidation("invalid " + field + ", expected RFC 3339 or YYYY-MM-DD").
		WithDetail("field", field)
}
