// Package validation translates schema-validation failures into the API
// error taxonomy.
//
// It is the only package that knows the shape of the external validators'
// failures (go-playground/validator via gin binding, and encoding/json decode
// errors). Everything is converted into an ordered list of Issue values and
// from there into a single apierror.BadRequest; callers never see a
// validator.FieldError.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-api-errors/internal/apierror"
)

const (
	// Message is the top-level message of every validation error.
	Message = "Validation Error"
	// Code is Details.Code of every validation error.
	Code = "VALIDATION_ERROR"
	// DetailsKey is the key under details that holds the field errors.
	DetailsKey = "validationErrors"
)

// Issue is one field-level validation problem.
type Issue struct {
	// Path is the ordered list of segments leading to the field.
	Path    []string
	Message string
	Code    string
}

// FieldError is the client-facing rendering of an Issue.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Failure is a validation fault raised directly by application code.
type Failure struct {
	issues []Issue
}

// NewFailure builds a Failure from issues.
func NewFailure(issues ...Issue) *Failure {
	return &Failure{issues: append([]Issue(nil), issues...)}
}

func (f *Failure) Error() string {
	parts := make([]string, 0, len(f.issues))
	for _, is := range f.issues {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(is.Path, "."), is.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Issues returns a copy of the recorded issues.
func (f *Failure) Issues() []Issue { return append([]Issue(nil), f.issues...) }

type issuer interface {
	Issues() []Issue
}

// Detect reports whether err is a schema-validation failure and returns its
// issues in order. The validator and JSON decoding shapes match only as the
// top-level value, the way gin binding returns them. A *Failure also matches
// through plain wrapping, unless an API error sits in the chain first.
func Detect(err error) ([]Issue, bool) {
	switch e := err.(type) {
	case nil:
		return nil, false
	case issuer:
		return e.Issues(), true
	case validator.ValidationErrors:
		return fromValidator(e), true
	case *json.UnmarshalTypeError:
		return []Issue{fromTypeError(e)}, true
	case *json.SyntaxError:
		return []Issue{{
			Message: fmt.Sprintf("Malformed JSON at offset %d", e.Offset),
			Code:    "invalid_json",
		}}, true
	}

	if _, tagged := apierror.As(err); tagged {
		return nil, false
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Issues(), true
	}
	return nil, false
}

// ToAPIError maps issues onto a single BadRequest error whose
// details.validationErrors preserves the order and length of issues.
func ToAPIError(issues []Issue, source string, now time.Time) *apierror.Error {
	fields := make([]FieldError, 0, len(issues))
	for _, is := range issues {
		fields = append(fields, FieldError{
			Field:   strings.Join(is.Path, "."),
			Message: is.Message,
			Code:    is.Code,
		})
	}
	return apierror.BadRequest(Message,
		apierror.WithCode(Code),
		apierror.WithDetail(DetailsKey, fields),
		apierror.WithSource(source),
		apierror.WithTimestamp(now),
	)
}

func fromTypeError(te *json.UnmarshalTypeError) Issue {
	var path []string
	if te.Field != "" {
		path = strings.Split(te.Field, ".")
	}
	expected := "unknown"
	if te.Type != nil {
		expected = te.Type.String()
	}
	return Issue{
		Path:    path,
		Message: fmt.Sprintf("Expected %s, received %s", expected, te.Value),
		Code:    "invalid_type",
	}
}
