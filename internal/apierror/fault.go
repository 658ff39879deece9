package apierror

import (
	"errors"
	"fmt"
)

// Panic is the fault recorded when a handler panics.
type Panic struct {
	Value any
	Stack string
}

func (p *Panic) Error() string { return fmt.Sprintf("panic: %v", p.Value) }

// Unwrap exposes the panic value when it was itself an error.
func (p *Panic) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// StackTrace returns the stack captured at the panic site.
func (p *Panic) StackTrace() string { return p.Stack }

type stackTracer interface {
	StackTrace() string
}

// StackOf returns the first stack trace carried by err's chain, or "".
func StackOf(err error) string {
	var st stackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return ""
}

// Describe renders an arbitrary fault as string-only data, suitable for a
// log record or a development response.
func Describe(v any) map[string]string {
	if v == nil {
		return map[string]string{"type": "<nil>"}
	}
	out := map[string]string{"type": fmt.Sprintf("%T", v)}
	if err, ok := v.(error); ok {
		out["message"] = err.Error()
	} else {
		out["message"] = fmt.Sprint(v)
	}
	return out
}
