// internal/common/validation/validation.go
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{3}[)]?[-\s.]?[0-9]{3}[-\s.]?[0-9]{4,6}$`)
	ssnPattern   = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidateSSN validates SSN format (XXX-XX-XXXX, dashes optional)
func ValidateSSN(ssn string) bool {
	return ssnPattern.MatchString(ssn)
}

// ValidateZIP validates a 5-digit or ZIP+4 code
func ValidateZIP(zip string) bool {
	return zipPattern.MatchString(zip)
}

// NewResult builds a ValidationResult from collected errors.
func NewResult(errors []ValidationError) *ValidationResult {
	return &ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// RequireString appends a REQUIRED_FIELD_MISSING error when value is blank.
func RequireString(errors []ValidationError, field, value string) []ValidationError {
	if strings.TrimSpace(value) == "" {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: "required field missing",
			Code:    "REQUIRED_FIELD_MISSING",
		})
	}
	return errors
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
