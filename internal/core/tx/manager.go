// Package tx provides transaction management abstractions.
// Domain services depend on Manager, never on a concrete database driver:
// any ACID-capable store (postgres, the in-memory store) can back it.
package tx

import (
	"context"
	"time"

	"stockledger/internal/core/apperror"
)

// Manager defines the contract for transaction management (the unit of work).
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, every write made through ctx is rolled back.
	// If fn succeeds, the transaction is committed durably.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RetryPolicy bounds transparent retries of conflicting transactions.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt. Values below 1 mean 1.
	MaxAttempts int

	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// DefaultRetryPolicy retries a conflicting transaction up to three times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 20 * time.Millisecond}
}

// RunWithRetry runs fn in a transaction and re-runs it when the store reports
// a TRANSACTION_CONFLICT. Any other error is returned immediately.
func RunWithRetry(ctx context.Context, m Manager, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = m.RunInTransaction(ctx, fn)
		if err == nil || !apperror.IsTransactionConflict(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		wait := policy.Backoff * time.Duration(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
