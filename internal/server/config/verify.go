// Package config provides the settings model for webhost-server.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yndnr/webhost-go/internal/core/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their document key instead of the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Verify validates the settings against their declared constraints.
//
// Every violation becomes one diagnostic of the returned
// domain.ErrSettingsModel, so the operator sees all problems at once.
func Verify(s *Settings) error {
	if s == nil {
		return domain.ErrSettingsModel.WithDetails("settings are nil")
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ErrSettingsModel.WithCause(err)
	}

	diags := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		diags = append(diags, describeFieldError(fe))
	}
	return domain.ErrSettingsModel.WithDiagnostics(diags).WithCause(err)
}

func describeFieldError(fe validator.FieldError) string {
	// Namespace is "Settings.web_server.http_port"; drop the root type.
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}

	var rule string
	switch fe.Tag() {
	case "gte":
		rule = "must be >= " + fe.Param()
	case "lte":
		rule = "must be <= " + fe.Param()
	case "gt":
		rule = "must be > " + fe.Param()
	case "oneof":
		rule = "must be one of [" + fe.Param() + "]"
	case "startswith":
		rule = fmt.Sprintf("must start with %q", fe.Param())
	default:
		rule = "failed " + fe.Tag() + " check"
	}
	return fmt.Sprintf("%s: %s (got %v)", key, rule, fe.Value())
}
