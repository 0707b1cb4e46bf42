package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var hostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// FieldError is one failed rule, addressed by the field's JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// FieldErrors is returned by Struct when any rule fails. It renders as the
// client-facing message and doubles as the error details payload.
type FieldErrors []FieldError

func (f FieldErrors) Error() string {
	if len(f) == 0 {
		return "invalid request payload"
	}
	messages := make([]string, len(f))
	for i, failure := range f {
		messages[i] = failure.Message
	}
	return strings.Join(messages, "; ")
}

var engine = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("teamrole", func(fl validator.FieldLevel) bool {
		switch strings.ToUpper(strings.TrimSpace(fl.Field().String())) {
		case "OWNER", "ADMIN", "MEMBER":
			return true
		}
		return false
	})
	_ = v.RegisterValidation("domainlist", func(fl validator.FieldLevel) bool {
		return IsDomainList(fl.Field().String())
	})
	return v
})

// Struct validates s against its validate tags. Rule failures come back as FieldErrors;
// anything else (a non-struct argument) is returned unchanged.
func Struct(s any) error {
	err := engine().Struct(s)
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return err
	}

	out := make(FieldErrors, 0, len(failures))
	for _, fe := range failures {
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag(), Message: describe(fe)})
	}
	return out
}

// IsDomainList reports whether value is a comma separated list of hostnames.
// Blank entries are ignored; an empty list is valid.
func IsDomainList(value string) bool {
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" && !hostnamePattern.MatchString(part) {
			return false
		}
	}
	return true
}

func describe(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(param, " ", ", "))
	case "url", "http_url":
		return field + " must be a valid URL"
	case "teamrole":
		return field + " must be one of OWNER, ADMIN, MEMBER"
	case "domainlist":
		return field + " must be a comma separated list of domain names"
	}
	if param != "" {
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), param)
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}
