// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// Recommended order:
//
//  1. RequestID      correlation id for everything below
//  2. RedactingLogger access log plus request-scoped zerolog.Logger
//  3. Recovery       panics become faults for the error handler
//  4. error handler  renders c.Errors
//  5. CaptureBody    bounded body read, kept for the error log
//
// so that every fault, including panics, is logged and rendered with the
// correlation id.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-api-errors/internal/apierror"
)

const (
	loggerKey = "logger"

	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// FaultFunc receives a fault that escaped the handler chain.
type FaultFunc func(c *gin.Context, fault error)

// Recovery turns a handler panic into an *apierror.Panic (value plus stack)
// and passes it to onFault, which must write the response. The chain is
// aborted either way. http.ErrAbortHandler is re-raised so net/http can
// drop the connection.
//
// With a nil onFault the request ends with a bare 500.
func Recovery(onFault FaultFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			c.Abort()
			fault := &apierror.Panic{Value: rec, Stack: string(debug.Stack())}
			if onFault != nil {
				onFault(c, fault)
				return
			}
			if !c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger attached by
// RedactingLogger, or the global logger tagged with the request id. Callers
// can use the result without nil checks.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Str("request_id", RequestIDFrom(c)).Logger()
	return &l
}

// asString converts an arbitrary interface to a string, returning an empty
// string when the value is not a string. Used for context values.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate returns s unchanged when within max length, otherwise it truncates
// s to max bytes and appends an ellipsis. A max <= 0 disables truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
