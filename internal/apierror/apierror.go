// Package apierror defines the typed fault model returned to API clients.
//
// Every failure that reaches a client is an *Error tagged with a Kind. The
// kind fixes the HTTP status and whether the fault is operational (an
// anticipated, client-facing condition) or an unexpected defect. Errors are
// built once at the point of failure through one constructor per kind and are
// never mutated afterwards:
//
//	return apierror.NotFound("account not found",
//	    apierror.WithCode("ACCOUNT_NOT_FOUND"),
//	    apierror.WithSource(c.Request.URL.Path),
//	)
//
// Serialization for clients goes through Body, which applies the redaction
// policy selected by Mode.
package apierror

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"runtime/debug"
	"time"
)

// Kind discriminates the error variants.
type Kind uint8

const (
	KindBadRequest Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInternal
)

// StatusCode returns the HTTP status bound to the kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Name is the error name rendered in the response envelope.
func (k Kind) Name() string {
	switch k {
	case KindBadRequest:
		return "BadRequestError"
	case KindUnauthorized:
		return "UnauthorizedError"
	case KindForbidden:
		return "ForbiddenError"
	case KindNotFound:
		return "NotFoundError"
	default:
		return "InternalServerError"
	}
}

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "BadRequest"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "NotFound"
	default:
		return "Internal"
	}
}

// GenericMessage replaces the message of internal errors in production.
const GenericMessage = "Internal Server Error"

// Details is the optional context attached to an error at construction.
type Details struct {
	// Code is a stable, machine-readable identifier, e.g. "VALIDATION_ERROR".
	Code string
	// Details carries structured, client-safe data.
	Details map[string]any
	// Source is the request path the error originated from.
	Source string
	// Timestamp is an ISO-8601 instant in UTC.
	Timestamp string
}

func (d Details) clone() Details {
	if d.Details != nil {
		d.Details = maps.Clone(d.Details)
	}
	return d
}

// Error is a classified API fault. The zero value is not usable; build one
// with BadRequest, Unauthorized, Forbidden, NotFound or Internal.
type Error struct {
	kind        Kind
	message     string
	details     Details
	operational bool
	cause       error
	raw         map[string]any
	stack       string
}

// Option customizes an Error at construction time.
type Option func(*Error)

// WithCode sets Details.Code.
func WithCode(code string) Option {
	return func(e *Error) { e.details.Code = code }
}

// WithSource sets Details.Source, normally the request path.
func WithSource(path string) Option {
	return func(e *Error) { e.details.Source = path }
}

// WithTimestamp sets Details.Timestamp from t (UTC, millisecond precision).
func WithTimestamp(t time.Time) Option {
	return func(e *Error) { e.details.Timestamp = FormatTimestamp(t) }
}

// WithDetails merges m into Details.Details. The map is copied.
func WithDetails(m map[string]any) Option {
	return func(e *Error) {
		if len(m) == 0 {
			return
		}
		if e.details.Details == nil {
			e.details.Details = make(map[string]any, len(m))
		}
		maps.Copy(e.details.Details, m)
	}
}

// WithDetail adds a single key to Details.Details.
func WithDetail(key string, value any) Option {
	return WithDetails(map[string]any{key: value})
}

// WithCause records the underlying fault. It is reachable through Unwrap and
// is never serialized to clients.
func WithCause(err error) Option {
	return func(e *Error) { e.cause = err }
}

// WithRaw attaches a raw value that is only exposed in Development mode,
// under details.<key>.
func WithRaw(key string, value any) Option {
	return func(e *Error) {
		if e.raw == nil {
			e.raw = make(map[string]any, 1)
		}
		e.raw[key] = value
	}
}

func newError(k Kind, message string, operational bool, opts []Option) *Error {
	e := &Error{
		kind:        k,
		message:     message,
		operational: operational,
		stack:       string(debug.Stack()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BadRequest builds a 400 error.
func BadRequest(message string, opts ...Option) *Error {
	return newError(KindBadRequest, message, true, opts)
}

// Unauthorized builds a 401 error.
func Unauthorized(message string, opts ...Option) *Error {
	return newError(KindUnauthorized, message, true, opts)
}

// Forbidden builds a 403 error.
func Forbidden(message string, opts ...Option) *Error {
	return newError(KindForbidden, message, true, opts)
}

// NotFound builds a 404 error.
func NotFound(message string, opts ...Option) *Error {
	return newError(KindNotFound, message, true, opts)
}

// Internal builds a 500 error. Internal errors are never operational.
func Internal(message string, opts ...Option) *Error {
	return newError(KindInternal, message, false, opts)
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.details.Code != "" {
		return fmt.Sprintf("%s(%s): %s", e.kind, e.details.Code, e.message)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Kind() Kind          { return e.kind }
func (e *Error) StatusCode() int     { return e.kind.StatusCode() }
func (e *Error) Message() string     { return e.message }
func (e *Error) IsOperational() bool { return e.operational }

// Stack is the goroutine stack captured when the error was built.
func (e *Error) Stack() string { return e.stack }

// Details returns a copy of the attached details.
func (e *Error) Details() Details { return e.details.clone() }

// Raw returns a copy of the development-only raw values.
func (e *Error) Raw() map[string]any { return maps.Clone(e.raw) }

// As reports whether err, or any error it wraps, is an *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// FormatTimestamp renders t the way Details.Timestamp expects.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
