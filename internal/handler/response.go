package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError, so every error from
// the API has the same shape:
//
//	{"error": "not_found", "message": "product not found with id 0b5c..."}
//
// writeError is the only place where an apperror kind becomes a status code.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/product-registry/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// MessageResponse is returned by endpoints that have nothing else to say.
type MessageResponse struct {
	Message string `json:"message"`
}

const maxJSONBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report json field names ("mairie_user_id") rather than Go ones.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be set before the body is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
//	ErrValidation, ErrDuplicateEmail             → 400
//	ErrUnauthorized                              → 401
//	ErrForbidden, ErrTokenExpired, ErrTokenInvalid → 403
//	ErrNotFound                                  → 404
//	ErrPersistence, ErrMalformed, anything else  → 500
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// Never expose an unclassified error: it may carry SQL or file paths.
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	errorType := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, errorType = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrDuplicateEmail):
		status, errorType = http.StatusBadRequest, "duplicate_email"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, errorType = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrTokenExpired):
		status, errorType = http.StatusForbidden, "token_expired"
	case errors.Is(err, apperror.ErrTokenInvalid):
		status, errorType = http.StatusForbidden, "token_invalid"
	case errors.Is(err, apperror.ErrForbidden):
		status, errorType = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, errorType = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrMalformed):
		errorType = "malformed_data"
	case errors.Is(err, apperror.ErrPersistence):
		errorType = "persistence_error"
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.String("kind", errorType), slog.String("error", err.Error()))
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
	})
}

// decodeJSON reads a JSON body into dst and runs the struct's validate tags.
// Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", fmt.Sprintf("request body must not exceed %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body must not be empty")
		default:
			return apperror.ValidationFailed("body", "invalid JSON body")
		}
	}
	return validateStruct(dst)
}

// validateStruct turns the first validator failure into an ErrValidation.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.ValidationFailed("body", err.Error())
	}

	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "email":
		msg = field + " must be a valid email address"
	case "uuid":
		msg = field + " must be a valid UUID"
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s failed the %q check", field, fe.Tag())
	}
	return apperror.ValidationFailed(field, msg)
}
