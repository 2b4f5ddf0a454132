package common

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// ValidationErrors is the error returned when a submission is rejected.
// It matches ErrValidation with errors.Is.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	messages := make([]string, 0, len(es))
	for _, err := range es {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

func (es ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// AsValidationErrors extracts ValidationErrors from err's chain.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var es ValidationErrors
	if errors.As(err, &es) {
		return es, true
	}
	return nil, false
}

// Validator provides validation utilities
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// Add records a failure found outside of a rule.
func (v *Validator) Add(fieldName string, value interface{}, format string, args ...interface{}) *Validator {
	v.errors = append(v.errors, ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf(format, args...)})
	return v
}

// Merge appends the failures of err when it carries ValidationErrors,
// otherwise records err against fieldName.
func (v *Validator) Merge(fieldName string, err error) *Validator {
	if err == nil {
		return v
	}
	if es, ok := AsValidationErrors(err); ok {
		for _, e := range es {
			if fieldName != "" && e.Field != "" {
				e.Field = fieldName + "." + e.Field
			} else if fieldName != "" {
				e.Field = fieldName
			}
			v.errors = append(v.errors, e)
		}
		return v
	}
	v.errors = append(v.errors, ValidationError{Field: fieldName, Message: err.Error()})
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Error returns the collected failures, or nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	out := make(ValidationErrors, len(v.errors))
	copy(out, v.errors)
	return out
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// report json names so messages match what callers sent
	structValidator.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

var tagMessages = map[string]string{
	"required":      "is required",
	"min":           "must be at least %s",
	"max":           "must be at most %s",
	"gte":           "must be greater than or equal to %s",
	"lte":           "must be less than or equal to %s",
	"oneof":         "must be one of [%s]",
	"hostname_port": "must be a host:port address",
}

// ValidateStruct checks `validate` struct tags and returns ValidationErrors.
func ValidateStruct(s interface{}) error {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	v := NewValidator()
	for _, fe := range fieldErrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "failed '" + fe.Tag() + "' check"
		} else if strings.Contains(msg, "%s") {
			msg = fmt.Sprintf(msg, fe.Param())
		}
		v.Add(fieldPath(fe.Namespace()), fe.Value(), "%s", msg)
	}
	return v.Error()
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
