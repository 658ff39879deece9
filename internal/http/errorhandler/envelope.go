package errorhandler

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-api-errors/internal/apierror"
	"github.com/tbourn/go-api-errors/internal/http/middleware"
)

// Envelope is the JSON body of every error response.
type Envelope struct {
	Error     apierror.Body `json:"error"`
	Path      string        `json:"path"`
	RequestID string        `json:"requestId"`
	IP        string        `json:"ip"`
}

// BuildEnvelope renders e for a client. The shape never varies by kind;
// only optional fields of the error body come and go.
func BuildEnvelope(e *apierror.Error, mode apierror.Mode, rc RequestContext) Envelope {
	return Envelope{
		Error:     e.Body(mode),
		Path:      rc.Path,
		RequestID: rc.RequestID,
		IP:        rc.ClientIP,
	}
}

// RequestContext is the per-request data attached to error logs. It is
// never persisted.
type RequestContext struct {
	Method    string              `json:"method"`
	Path      string              `json:"path"`
	RequestID string              `json:"requestId"`
	ClientIP  string              `json:"ip"`
	Query     map[string][]string `json:"query,omitempty"`
	Body      any                 `json:"body,omitempty"`
	Headers   map[string]string   `json:"headers,omitempty"`
}

func (h *Handler) requestContext(c *gin.Context) RequestContext {
	r := c.Request
	return RequestContext{
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: middleware.RequestIDFrom(c),
		ClientIP:  clientIP(r),
		Query:     r.URL.Query(),
		Body:      loggableBody(middleware.BodyFrom(c)),
		Headers:   h.scrub.MaskOnly(r.Header),
	}
}

// clientIP resolves the caller for logs and envelopes: the first
// X-Forwarded-For entry, then the transport peer, then "unknown".
func clientIP(r *http.Request) string {
	if vals := r.Header.Values("X-Forwarded-For"); len(vals) > 0 {
		first, _, _ := strings.Cut(vals[0], ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}

// loggableBody keeps JSON bodies structured in the log record and falls back
// to the raw text otherwise.
func loggableBody(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	return string(b)
}
