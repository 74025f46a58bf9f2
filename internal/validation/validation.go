// Package validation checks user input before it reaches the services: struct
// tags evaluated by go-playground/validator plus the PlatformHub-specific
// tags resource_name, resource_type, environment, request_status and role.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/platformhub/platformhub/internal/db/models"
)

// Resource name limits
const (
	NameMinLength = 3
	NameMaxLength = 100
)

// NamePattern constrains resource names
var NamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %s: %v", tag, err))
		}
	}
	must("resource_name", func(fl validator.FieldLevel) bool {
		return ResourceName(fl.Field().String()) == nil
	})
	must("resource_type", func(fl validator.FieldLevel) bool {
		return models.ResourceType(fl.Field().String()).Valid()
	})
	must("environment", func(fl validator.FieldLevel) bool {
		return models.Environment(fl.Field().String()).Valid()
	})
	must("request_status", func(fl validator.FieldLevel) bool {
		return models.RequestStatus(fl.Field().String()).Valid()
	})
	must("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})
	return v
}

// fieldName reports fields by their json (or form) name so messages match
// what the client sent.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// Engine returns the shared validator, for registration with gin's binding.
func Engine() *validator.Validate {
	return validate
}

// Struct validates s and returns a single readable error naming the first
// failing field.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return errors.New(Message(fieldErrs[0]))
	}
	return err
}

// ResourceName checks the name pattern and length bounds.
func ResourceName(name string) error {
	if len(name) < NameMinLength || len(name) > NameMaxLength {
		return fmt.Errorf("name must be between %d and %d characters", NameMinLength, NameMaxLength)
	}
	if !NamePattern.MatchString(name) {
		return fmt.Errorf("name must match %s", NamePattern.String())
	}
	return nil
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// Message maps a field error to the text returned to clients.
func Message(fe validator.FieldError) string {
	inner := func() string {
		switch fe.ActualTag() {
		case "required":
			return "is required"
		case "email":
			return "must be a valid email address"
		case "min":
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		case "max":
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		case "oneof":
			return fmt.Sprintf("must be one of %s", strings.Join(strings.Fields(fe.Param()), ", "))
		case "resource_name":
			if err := ResourceName(fmt.Sprint(fe.Value())); err != nil {
				return strings.TrimPrefix(err.Error(), "name ")
			}
		case "resource_type":
			return "must be one of " + joinValues(models.ResourceTypes)
		case "environment":
			return "must be one of " + joinValues(models.Environments)
		case "request_status":
			return "must be one of pending, approved, rejected"
		case "role":
			return "must be one of " + joinValues(models.Roles)
		}
		return "is invalid"
	}
	return fmt.Sprintf("%s %s", fe.Field(), inner())
}
