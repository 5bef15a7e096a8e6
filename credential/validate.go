package credential

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyInput indicates the trimmed value is empty.
	ErrEmptyInput = errors.New("empty input")
	// ErrTooShort indicates the value is below the minimum length.
	ErrTooShort = errors.New("input too short")
	// ErrInvalidFormat indicates the value does not match the expected shape.
	ErrInvalidFormat = errors.New("invalid format")
)

const (
	minEmailLength    = 3
	minPasswordLength = 6
)

// User-facing messages are fixed French strings shown inline under the field.
const (
	msgEmailRequired    = "L'email est requis"
	msgEmailTooShort    = "Email trop court"
	msgEmailBadFormat   = "Format d'email invalide"
	msgPasswordRequired = "Le mot de passe est requis"
	msgPasswordTooShort = "Minimum 6 caractères"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError carries the validation failure cause and the message to display.
// It wraps one of the package sentinels so callers can branch with errors.Is.
type FieldError struct {
	cause   error
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Unwrap exposes the sentinel cause.
func (e *FieldError) Unwrap() error { return e.cause }

// ValidateEmail checks a raw email value. A nil return means valid.
//
// Emptiness is decided on the trimmed value; length and format on the raw
// value, matching the submission path exactly.
func ValidateEmail(value string) *FieldError {
	if strings.TrimSpace(value) == "" {
		return &FieldError{cause: ErrEmptyInput, Message: msgEmailRequired}
	}
	if len(value) < minEmailLength {
		return &FieldError{cause: ErrTooShort, Message: msgEmailTooShort}
	}
	if !strings.Contains(value, "@") {
		return &FieldError{cause: ErrInvalidFormat, Message: msgEmailBadFormat}
	}
	if !emailPattern.MatchString(value) {
		return &FieldError{cause: ErrInvalidFormat, Message: msgEmailBadFormat}
	}
	return nil
}

// ValidatePassword checks a raw password value. A nil return means valid.
func ValidatePassword(value string) *FieldError {
	if strings.TrimSpace(value) == "" {
		return &FieldError{cause: ErrEmptyInput, Message: msgPasswordRequired}
	}
	if len(value) < minPasswordLength {
		return &FieldError{cause: ErrTooShort, Message: msgPasswordTooShort}
	}
	return nil
}
