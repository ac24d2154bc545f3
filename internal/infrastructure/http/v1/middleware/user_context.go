package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "stockledger/internal/core/context"
)

// Caller identity headers. Authentication happens upstream; the ledger only
// records who performed each operation.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// UserContext copies the caller identity headers into the request context,
// where the domain layer reads it via appctx.GetUserID(ctx).
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{
				UserID: uid,
				Name:   strings.TrimSpace(c.GetHeader(HeaderUserName)),
			})
			c.Request = c.Request.WithContext(ctx)
			c.Set("user_id", uid)
		}
		c.Next()
	}
}
