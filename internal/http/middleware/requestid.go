package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-api-errors/internal/logging"
)

const (
	// RequestIDHeader carries the correlation id in both directions.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "requestID"
)

// RequestID assigns the request's correlation id. It must run before any
// business handler.
//
//   - No X-Request-ID (or an empty one): a UUIDv4 is generated, written into
//     the request headers and announced on lg's info channel.
//   - Several X-Request-ID values: the first wins and the rest are dropped.
//
// The id is stored in the gin context (see RequestIDFrom) and echoed on the
// response header. Logging problems never fail the request.
func RequestID(lg logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rid string
		if vals := c.Request.Header.Values(RequestIDHeader); len(vals) > 0 {
			rid = vals[0]
		}
		if rid == "" {
			rid = uuid.NewString()
			announce(lg, rid)
		}
		c.Request.Header.Set(RequestIDHeader, rid)
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Next()
	}
}

func announce(lg logging.Logger, rid string) {
	if lg == nil {
		return
	}
	defer func() { _ = recover() }()
	_ = lg.Info("Generated new x-request-id: "+rid, map[string]any{"requestId": rid})
}

// RequestIDFrom returns the id assigned by RequestID, falling back to the
// request header when the middleware did not run.
func RequestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s := asString(v); s != "" {
			return s
		}
	}
	if c.Request != nil {
		return c.Request.Header.Get(RequestIDHeader)
	}
	return ""
}
