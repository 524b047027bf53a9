package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json", "yaml"} {
			name := strings.Split(f.Tag.Get(tag), ",")[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Validator exposes the shared validator. Field errors carry query, json
// or yaml names instead of Go field names.
func Validator() *validator.Validate { return validate }

// ReadAndValidateRequest binds query or body parameters, fills struct-tag
// defaults for absent ones and validates. The result is nil or a
// []ValidationError suitable for BadRequestResponse.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fes validator.ValidationErrors
	if errors.As(err, &fes) {
		out := make([]ValidationError, 0, len(fes))
		for _, fe := range fes {
			out = append(out, fieldError(fe))
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_BIND", Message: msg}}
}

// ruleText maps a validator tag to its message verb and the params key its
// argument is reported under.
var ruleText = map[string][2]string{
	"min":   {"must be at least %s", "min"},
	"gte":   {"must be greater than or equal to %s", "min"},
	"gt":    {"must be greater than %s", "min"},
	"max":   {"must be at most %s", "max"},
	"lte":   {"must be less than or equal to %s", "max"},
	"lt":    {"must be less than %s", "max"},
	"oneof": {"must be one of: %s", "options"},
}

func fieldError(fe validator.FieldError) ValidationError {
	ve := ValidationError{
		Code:  "ERR_" + strings.ToUpper(fe.Tag()),
		Field: fe.Field(),
	}
	rule, ok := ruleText[fe.Tag()]
	switch {
	case fe.Tag() == "required":
		ve.Message = ve.Field + " is required"
	case !ok:
		ve.Message = fmt.Sprintf("%s failed %s validation", ve.Field, fe.Tag())
	case fe.Tag() == "oneof":
		opts := strings.Fields(fe.Param())
		ve.Message = ve.Field + " " + fmt.Sprintf(rule[0], strings.Join(opts, ", "))
		ve.Params = map[string]interface{}{rule[1]: opts}
	default:
		ve.Message = ve.Field + " " + fmt.Sprintf(rule[0], fe.Param())
		ve.Params = map[string]interface{}{rule[1]: fe.Param()}
	}
	return ve
}
