package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned for owner-scoped lookups that miss. It never
	// distinguishes a missing record from one owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the caller has no authenticated identity.
	ErrUnauthorized = errors.New("authentication required")
	// ErrConflict is returned by stores when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials is the single message for every failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError describes a single field that failed its rules.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors is returned when one or more fields fail validation.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// ByField indexes messages by field name; the first message per field wins.
func (v ValidationErrors) ByField() map[string]string {
	out := make(map[string]string, len(v))
	for _, e := range v {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.Message
		}
	}
	return out
}

// ConflictError is a uniqueness violation surfaced against a specific field.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrConflict) hold for field-level conflicts.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Fields presents the conflict as a validation failure so forms can render it inline.
func (e *ConflictError) Fields() ValidationErrors {
	return ValidationErrors{{Field: e.Field, Message: e.Message}}
}

// FieldErrors extracts field-level messages from validation and conflict errors.
func FieldErrors(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Fields(), true
	}
	return nil, false
}
