package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-api-errors/internal/redact"
)

// RedactOptions configures RedactingLogger.
//
// Scrubber decides which headers are masked; nil means redact.New().
// Logger is the base access logger; nil means the zerolog global logger.
type RedactOptions struct {
	Scrubber *redact.Scrubber
	Logger   *zerolog.Logger
}

// RedactingLogger writes one access log record per request with PII scrubbed
// from the query string and headers. Bodies are never logged.
//
// It also attaches a request-scoped logger (request id, method, path) that
// handlers retrieve with LoggerFrom.
//
// Severity follows the outcome: error for 5xx, warn for 4xx, info otherwise.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	scrub := opts.Scrubber
	if scrub == nil {
		scrub = redact.New()
	}

	return func(c *gin.Context) {
		start := time.Now()

		base := log.Logger
		if opts.Logger != nil {
			base = *opts.Logger
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		safeQuery := scrub.Text(truncate(c.Request.URL.RawQuery, maxQueryLogLength))
		safeHeaders := scrub.Headers(c.Request.Header)

		l := base.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}

		ev.
			Str("query", safeQuery).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Int("errors", len(c.Errors)).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders).
			Msg("http_request")
	}
}
