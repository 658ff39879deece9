package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Register configures gin's binding validator so that field paths use JSON
// names. Call it once before serving.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("validation: gin binding engine is not go-playground/validator")
	}
	Configure(v)
	return nil
}

// Configure installs the JSON tag-name func on v.
func Configure(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonName)
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

func fromValidator(ve validator.ValidationErrors) []Issue {
	out := make([]Issue, 0, len(ve))
	for _, fe := range ve {
		msg, code := describe(fe)
		out = append(out, Issue{
			Path:    splitNamespace(fe.Namespace()),
			Message: msg,
			Code:    code,
		})
	}
	return out
}

// splitNamespace turns "Request.items[0].name" into ["items" "0" "name"].
// The leading struct name is dropped.
func splitNamespace(ns string) []string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		for p != "" {
			open := strings.IndexByte(p, '[')
			if open < 0 {
				out = append(out, p)
				break
			}
			if open > 0 {
				out = append(out, p[:open])
			}
			end := strings.IndexByte(p[open:], ']')
			if end < 0 {
				out = append(out, p[open:])
				break
			}
			out = append(out, p[open+1:open+end])
			p = p[open+end+1:]
		}
	}
	return out
}

func describe(fe validator.FieldError) (message, code string) {
	param := fe.Param()
	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_with", "required_without":
		return "Required", "invalid_type"
	case "email":
		return "Invalid email", "invalid_string"
	case "url", "http_url", "uri":
		return "Invalid url", "invalid_string"
	case "uuid", "uuid4", "uuid_rfc4122", "uuid4_rfc4122":
		return "Invalid uuid", "invalid_string"
	case "alpha", "alphanum", "ascii", "printascii", "lowercase", "uppercase", "hostname", "ip", "datetime", "e164":
		return fmt.Sprintf("Invalid %s", fe.Tag()), "invalid_string"
	case "min", "gte":
		return bound(fe.Kind(), "at least", "greater than or equal to", param), "too_small"
	case "gt":
		return bound(fe.Kind(), "more than", "greater than", param), "too_small"
	case "max", "lte":
		return bound(fe.Kind(), "at most", "less than or equal to", param), "too_big"
	case "lt":
		return bound(fe.Kind(), "fewer than", "less than", param), "too_big"
	case "len":
		return bound(fe.Kind(), "exactly", "equal to", param), "invalid_length"
	case "oneof":
		opts := strings.Fields(param)
		for i, o := range opts {
			opts[i] = "'" + o + "'"
		}
		return "Invalid enum value. Expected " + strings.Join(opts, " | "), "invalid_enum_value"
	}
	return fmt.Sprintf("Failed on the '%s' rule", fe.Tag()), fe.Tag()
}

func bound(k reflect.Kind, sizeWord, numWord, param string) string {
	switch k {
	case reflect.String:
		return fmt.Sprintf("String must contain %s %s character(s)", sizeWord, param)
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("Array must contain %s %s element(s)", sizeWord, param)
	case reflect.Map:
		return fmt.Sprintf("Map must contain %s %s entry(ies)", sizeWord, param)
	}
	return fmt.Sprintf("Number must be %s %s", numWord, param)
}
