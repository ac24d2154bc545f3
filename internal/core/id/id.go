// Package id provides UUIDv7 generation for all ledger entities.
// UUIDv7 is time-ordered, so movements and alerts sort naturally by creation time.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(strings.TrimSpace(s))
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// NewBatchCode generates a human-readable lot code for stock entries that
// arrive without one, e.g. "B-20261018-1f3a9c2e".
func NewBatchCode(receivedAt time.Time) string {
	suffix := strings.ReplaceAll(New().String(), "-", "")
	return fmt.Sprintf("B-%s-%s", receivedAt.UTC().Format("20060102"), suffix[len(suffix)-8:])
}
