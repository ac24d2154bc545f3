package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"stockledger/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the ledger tables and indexes when missing.
// Every statement is idempotent, so it runs on each start.
func EnsureSchema(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Debug(ctx, "database schema ensured")
	return nil
}
