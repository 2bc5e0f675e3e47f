package api

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator with the watchdog tags registered.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})

		// Registration only fails for empty tags or nil functions.
		_ = validate.RegisterValidation("target_kind", func(fl validator.FieldLevel) bool {
			_, err := target.ParseKind(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
			_, err := logging.ParseLevel(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// validateRecord checks the request shape. Value ranges are left to the configuration store.
func validateRecord(v interface{}) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) {
		return errors.NewValidationError("invalid request", err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		messages = append(messages, describeFieldError(fieldError))
	}
	return errors.NewInvalidConfigError(strings.Join(messages, "; "), nil)
}

func describeFieldError(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldError.Field())
	case "target_kind":
		return fmt.Sprintf("%s: unsupported target kind %q", fieldError.Field(), fieldError.Value())
	case "log_level":
		return fmt.Sprintf("%s: invalid log level %q", fieldError.Field(), fieldError.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fieldError.Field(), fieldError.Tag())
	}
}
