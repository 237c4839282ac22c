package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/j-94/waggle-dance/internal/types"
)

// Validator validates loaded settings.
type Validator interface {
	Validate(settings *Settings) error
}

type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a Validator backed by go-playground/validator.
func NewValidator() Validator {
	return &validatorImpl{validate: validator.New()}
}

// Validate runs struct-tag validation and returns readable messages.
func (v *validatorImpl) Validate(settings *Settings) error {
	if settings == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "settings are nil")
	}

	err := v.validate.Struct(settings)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "settings validation failed", err)
	}

	messages := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		messages = append(messages, formatValidationError(e))
	}
	return types.NewError(types.CONFIG_VALIDATION_FAILED,
		"settings validation failed:\n  - "+strings.Join(messages, "\n  - "))
}

// formatValidationError renders one field error with its path and constraint.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fieldPath)
	case "gte":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed validation %q (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath converts a validator namespace to the yaml-ish path users
// see in their settings file: "Settings.Plan.MaxTokens" -> "plan.max_tokens".
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}

	result := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		result = append(result, camelToSnake(parts[i]))
	}
	return strings.Join(result, ".")
}

func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteRune('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
