// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// UserContext identifies the caller performing a ledger operation.
// Authentication happens upstream; the ledger only records who acted.
type UserContext struct {
	UserID string
	Name   string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// ResolveUserID prefers an explicit user ID and falls back to the one in ctx.
func ResolveUserID(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return GetUserID(ctx)
}
