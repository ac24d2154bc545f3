// Package idempotency defines how mutating HTTP requests carrying an
// idempotency key are deduplicated. Stores live in the storage packages.
package idempotency

import (
	"context"
	"net/http"
	"time"
)

// DefaultTTL is how long a completed response is kept for replay.
const DefaultTTL = 24 * time.Hour

// StaleAfter is when a pending key is considered abandoned and may be reclaimed.
const StaleAfter = time.Minute

// Status is the state of a keyed request.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Replay is the stored HTTP response returned for a repeated request.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store records keyed requests and their responses.
type Store interface {
	// AcquireKey claims key for a request. It returns (nil, nil) when the
	// caller should process the request, a Replay when it already completed,
	// IDEMPOTENCY_CONFLICT while it is in flight, and IDEMPOTENCY_KEY_REUSED
	// when the key belongs to a different request.
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error)

	// CompleteKey stores a successful response.
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// FailKey stores an error response.
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// NormalizeReplay fills defaults for records stored without status or content type.
func NormalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" && r.StatusCode != http.StatusNoContent {
		r.ContentType = "application/json"
	}
	return r
}
