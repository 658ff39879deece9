// Package errorhandler turns any fault raised while serving a request into
// exactly one JSON error response and one error log record.
//
// Business handlers report faults with c.Error(err) and return; panics are
// converted by middleware.Recovery. Both paths end in Handler.Handle, which
//
//  1. classifies the fault: validation failures first, then *apierror.Error
//     values as they are, then anything else wrapped as Internal;
//  2. writes one record on the logger's error channel;
//  3. renders the Envelope with the matching status.
//
// If any of those steps faults (an error or a panic), the handler falls back
// to a fixed 500 with code ERROR_HANDLER_FAILED.
package errorhandler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-api-errors/internal/apierror"
	"github.com/tbourn/go-api-errors/internal/http/middleware"
	"github.com/tbourn/go-api-errors/internal/logging"
	"github.com/tbourn/go-api-errors/internal/redact"
	"github.com/tbourn/go-api-errors/internal/validation"
)

const (
	// CodeInternal tags unclassified faults.
	CodeInternal = "INTERNAL_ERROR"
	// CodeHandlerFailed tags the fallback response.
	CodeHandlerFailed = "ERROR_HANDLER_FAILED"

	msgAPIError  = "API Error"
	msgUnhandled = "Unhandled Error"
	msgFailed    = "Error Handler Failed"

	contentTypeJSON = "application/json; charset=utf-8"
)

// Handler is safe for concurrent use once built.
type Handler struct {
	log     logging.Logger
	mode    apierror.Mode
	now     func() time.Time
	scrub   *redact.Scrubber
	metrics *metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithMode selects production (default) or development rendering.
func WithMode(m apierror.Mode) Option { return func(h *Handler) { h.mode = m } }

// WithClock overrides the time source for error timestamps.
func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// WithMaskHeaders masks extra request headers in error logs, on top of
// Authorization, Cookie and Set-Cookie.
func WithMaskHeaders(names ...string) Option {
	return func(h *Handler) { h.scrub = redact.New(names...) }
}

// WithRegisterer enables the api_errors_total and
// api_error_handler_failures_total counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(h *Handler) { h.metrics = newMetrics(reg) }
}

// New builds a Handler writing to lg.
func New(lg logging.Logger, opts ...Option) *Handler {
	h := &Handler{
		log:   lg,
		now:   time.Now,
		scrub: redact.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Middleware hands the last fault recorded with c.Error to Handle once the
// rest of the chain has run.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		h.Handle(c, c.Errors.Last().Err)
	}
}

// NotFound reports an unmatched route as a NotFound fault. Install it with
// engine.NoRoute (and NoMethod) behind Middleware.
func (h *Handler) NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(apierror.NotFound("Route " + c.Request.URL.RequestURI() + " not found"))
		c.Abort()
	}
}

// Handle terminates the request with exactly one error response for fault.
// A nil fault is ignored. If a response was already written, the fault is
// logged and nothing more is sent.
func (h *Handler) Handle(c *gin.Context, fault error) {
	if fault == nil {
		return
	}
	c.Abort()
	if err := protect(func() error { return h.handle(c, fault) }); err != nil {
		h.degrade(c, fault, err)
	}
}

func (h *Handler) handle(c *gin.Context, fault error) error {
	rc := h.requestContext(c)
	e, unhandled := h.classify(fault, rc.Path)

	msg, fields := msgAPIError, h.logFields(e, rc)
	if unhandled {
		msg = msgUnhandled
		fields["error"] = fault.Error()
		fields["errorType"] = fmt.Sprintf("%T", fault)
		if st := apierror.StackOf(fault); st != "" {
			fields["errorStack"] = st
		}
	}
	written := c.Writer.Written()
	if written {
		fields["responseCommitted"] = true
	}
	if err := h.log.Error(msg, fields); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}

	h.metrics.observe(e)
	recordOnSpan(c.Request.Context(), e, rc.RequestID)

	if written {
		return nil
	}
	body, err := json.Marshal(BuildEnvelope(e, h.mode, rc))
	if err != nil {
		return fmt.Errorf("render envelope: %w", err)
	}
	c.Data(e.StatusCode(), contentTypeJSON, body)
	return nil
}

// classify reports whether the fault was unknown and had to be wrapped.
// Detect never looks past an API error, so a tagged fault keeps its kind.
func (h *Handler) classify(fault error, path string) (*apierror.Error, bool) {
	if issues, ok := validation.Detect(fault); ok {
		return validation.ToAPIError(issues, path, h.now()), false
	}
	if e, ok := apierror.As(fault); ok {
		return e, false
	}

	msg := apierror.GenericMessage
	opts := []apierror.Option{
		apierror.WithCode(CodeInternal),
		apierror.WithSource(path),
		apierror.WithTimestamp(h.now()),
		apierror.WithCause(fault),
	}
	if h.mode == apierror.Development {
		msg = fault.Error()
		opts = append(opts, apierror.WithRaw("error", apierror.Describe(fault)))
	}
	return apierror.Internal(msg, opts...), true
}

func (h *Handler) logFields(e *apierror.Error, rc RequestContext) map[string]any {
	d := e.Details()
	fields := map[string]any{
		"name":        e.Kind().Name(),
		"kind":        e.Kind().String(),
		"statusCode":  e.StatusCode(),
		"message":     e.Message(),
		"operational": e.IsOperational(),
		"path":        rc.Path,
		"requestId":   rc.RequestID,
		"ip":          rc.ClientIP,
		"request":     rc,
		"stack":       e.Stack(),
	}
	if d.Code != "" {
		fields["code"] = d.Code
	}
	if len(d.Details) > 0 {
		fields["details"] = d.Details
	}
	if d.Source != "" {
		fields["source"] = d.Source
	}
	if d.Timestamp != "" {
		fields["timestamp"] = d.Timestamp
	}
	if raw := e.Raw(); len(raw) > 0 {
		fields["raw"] = raw
	}
	return fields
}

// protect runs fn and turns a panic into an error.
func protect(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &apierror.Panic{Value: rec, Stack: string(debug.Stack())}
		}
	}()
	return fn()
}

// degrade is the fallback for a fault inside the handler itself. It only
// builds string data, never re-enters handle, and each step recovers its
// own panics so a response still goes out.
func (h *Handler) degrade(c *gin.Context, original, secondary error) {
	path := safeString(func() string { return c.Request.URL.Path })
	rid := safeString(func() string { return middleware.RequestIDFrom(c) })
	ip := safeString(func() string { return clientIP(c.Request) })
	method := safeString(func() string { return c.Request.Method })
	orig, sec := apierror.Describe(original), apierror.Describe(secondary)

	func() {
		defer func() { _ = recover() }()
		_ = h.log.Error(msgFailed, map[string]any{
			"originalError": orig,
			"handlingError": sec,
			"method":        method,
			"path":          path,
			"requestId":     rid,
			"ip":            ip,
		})
	}()
	func() {
		defer func() { _ = recover() }()
		h.metrics.degraded()
	}()

	defer func() { _ = recover() }()
	if c.Writer.Written() {
		return
	}
	body := apierror.Body{
		Name:       apierror.KindInternal.Name(),
		Message:    apierror.GenericMessage,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeHandlerFailed,
		Source:     path,
	}
	if h.mode == apierror.Development {
		body.Details = map[string]any{"originalError": orig, "handlingError": sec}
	}
	out, err := json.Marshal(Envelope{Error: body, Path: path, RequestID: rid, IP: ip})
	if err != nil {
		out = []byte(`{"error":{"name":"InternalServerError","message":"Internal Server Error","statusCode":500,"code":"ERROR_HANDLER_FAILED"}}`)
	}
	c.Data(http.StatusInternalServerError, contentTypeJSON, out)
}

func safeString(fn func() string) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	return fn()
}
