// Package apperror defines the error kinds shared by every layer of the registry.
//
// Lower layers return an *AppError whose Err is one of the sentinel kinds below.
// The HTTP layer maps kinds to status codes with errors.Is; the Message is what
// the client sees.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation error")
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrPersistence    = errors.New("persistence error")
	ErrMalformed      = errors.New("malformed stored data")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: low-level error, never shown to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the low-level cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidArgument reports an identifier that is not a well-formed UUID.
func InvalidArgument(field, value string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: fmt.Sprintf("%s %q is not a valid UUID", field, value),
		Field:   field,
	}
}

func DuplicateEmail(email string) *AppError {
	return &AppError{
		Err:     ErrDuplicateEmail,
		Message: fmt.Sprintf("a user with email %s already exists", email),
		Field:   "email",
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:     ErrTokenExpired,
		Message: "token expired",
	}
}

func TokenInvalid(reason string) *AppError {
	msg := "token invalid"
	if reason != "" {
		msg += ": " + reason
	}
	return &AppError{
		Err:     ErrTokenInvalid,
		Message: msg,
	}
}

// Persistence wraps a failed write. The cause is kept for logs only.
func Persistence(action string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: "failed " + action,
		Cause:   cause,
	}
}

// Malformed reports a stored row that could not be decoded. id may be empty
// when the row was read as part of a list.
func Malformed(resource, id string, cause error) *AppError {
	msg := fmt.Sprintf("stored %s has malformed data", resource)
	if id != "" {
		msg = fmt.Sprintf("%s %s has malformed stored data", resource, id)
	}
	return &AppError{
		Err:     ErrMalformed,
		Message: msg,
		Cause:   cause,
	}
}
