package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

type idemRecord struct {
	userID, operation, requestHash string
	status                         idempotency.Status
	replay                         idempotency.Replay
	updatedAt, expiresAt           time.Time
}

// IdempotencyStore keeps idempotency keys in process. Expired keys are
// dropped lazily when touched.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]*idemRecord
	now     func() time.Time
}

// NewIdempotencyStore creates a store keeping responses for ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{
		ttl:     ttl,
		records: map[string]*idemRecord{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *IdempotencyStore) AcquireKey(_ context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if ok && now.After(rec.expiresAt) {
		delete(s.records, key)
		ok = false
	}
	if !ok {
		s.records[key] = &idemRecord{
			userID:      userID,
			operation:   operation,
			requestHash: requestHash,
			status:      idempotency.StatusPending,
			updatedAt:   now,
			expiresAt:   now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.userID != userID || rec.operation != operation || rec.requestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", rec.operation).
			WithDetail("request_operation", operation)
	}

	switch rec.status {
	case idempotency.StatusPending:
		if now.Sub(rec.updatedAt) <= idempotency.StaleAfter {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		rec.updatedAt = now
		return nil, nil
	default:
		replay := rec.replay
		replay.Body = append([]byte(nil), rec.replay.Body...)
		return idempotency.NormalizeReplay(&replay), nil
	}
}

func (s *IdempotencyStore) CompleteKey(_ context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, idempotency.StatusSuccess, statusCode, contentType, response)
}

func (s *IdempotencyStore) FailKey(_ context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(key, idempotency.StatusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	var body []byte
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			b, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		body = b
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return apperror.NewNotFound("idempotency key", key)
	}
	rec.status = status
	rec.replay = idempotency.Replay{StatusCode: statusCode, ContentType: contentType, Body: body}
	rec.updatedAt = s.now()
	return nil
}
