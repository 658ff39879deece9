package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-api-errors/internal/domain"
)

// UserIDHeader carries the caller identity in this demo API.
const UserIDHeader = "X-User-ID"

// AccountService defines the account operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor ctx.
type AccountService interface {
	// Register creates an account; an empty role means member.
	Register(ctx context.Context, email, name, role string) (*domain.Account, error)
	// Get returns account id as seen by callerID.
	Get(ctx context.Context, callerID, id string) (*domain.Account, error)
}

// Handlers groups the account and health endpoints.
type Handlers struct {
	accounts AccountService
}

// New constructs Handlers bound to the given service.
func New(accounts AccountService) *Handlers {
	return &Handlers{accounts: accounts}
}

// userID returns the caller identity: a "userID" context value set by
// upstream middleware, else the X-User-ID header. Empty means anonymous.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c.Request != nil {
		return strings.TrimSpace(c.GetHeader(UserIDHeader))
	}
	return ""
}
