package apierror

import (
	"fmt"
	"maps"
	"strings"
)

// Mode selects how much of an error is exposed to clients.
type Mode uint8

const (
	// Production redacts internal messages, raw causes and stacks.
	Production Mode = iota
	// Development exposes everything.
	Development
)

func (m Mode) String() string {
	if m == Development {
		return "development"
	}
	return "production"
}

// ParseMode maps an environment name onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod", "":
		return Production, nil
	case "development", "dev":
		return Development, nil
	}
	return Production, fmt.Errorf("unknown mode %q", s)
}

// Body is the response-safe rendering of an Error.
type Body struct {
	Name       string         `json:"name"`
	Message    string         `json:"message"`
	StatusCode int            `json:"statusCode"`
	Code       string         `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Source     string         `json:"source,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
	Stack      string         `json:"stack,omitempty"`
}

// Body serializes e for a client under the given mode.
//
// In Production an internal error carries GenericMessage and neither raw
// values nor the stack are emitted for any kind. In Development the original
// message, raw values (merged into details) and the stack are included.
func (e *Error) Body(mode Mode) Body {
	b := Body{
		Name:       e.kind.Name(),
		Message:    e.message,
		StatusCode: e.kind.StatusCode(),
		Code:       e.details.Code,
		Source:     e.details.Source,
		Timestamp:  e.details.Timestamp,
	}
	if len(e.details.Details) > 0 {
		b.Details = maps.Clone(e.details.Details)
	}

	if mode != Development {
		if e.kind == KindInternal {
			b.Message = GenericMessage
		}
		return b
	}

	if len(e.raw) > 0 {
		if b.Details == nil {
			b.Details = make(map[string]any, len(e.raw))
		}
		maps.Copy(b.Details, e.raw)
	}
	b.Stack = e.stack
	return b
}
