// Package apperr defines the error taxonomy shared by all domain services.
// Services wrap these sentinels with fmt.Errorf("...: %w", ...) so handlers
// can map them to HTTP status codes with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrNotFound indicates an entity id did not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates an illegal status change was attempted.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict indicates an operation is blocked by current state,
	// such as deleting a sample that is still processing.
	ErrConflict = errors.New("conflict with current state")

	// ErrDecode indicates a persisted value could not be interpreted under
	// any known encoding format.
	ErrDecode = errors.New("cannot decode persisted value")

	// ErrExternal indicates an external collaborator failed, timed out, or
	// produced unusable output.
	ErrExternal = errors.New("external collaborator failure")

	// ErrConfiguration indicates a required configuration value is missing
	// or malformed. Fatal at startup, never recoverable at runtime.
	ErrConfiguration = errors.New("configuration error")
)

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}

// InvalidTransition wraps ErrInvalidTransition with the offending change.
func InvalidTransition(kind, from, to string) error {
	return fmt.Errorf("%s cannot move from %q to %q: %w", kind, from, to, ErrInvalidTransition)
}

// Conflict wraps ErrConflict with a reason.
func Conflict(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrConflict)
}

// HTTPStatus maps a taxonomy error to an HTTP status code. Unknown errors
// map to 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP converts a service error into an echo HTTPError carrying the
// mapped status and the error message as the body.
func ToHTTP(err error) *echo.HTTPError {
	return echo.NewHTTPError(HTTPStatus(err), err.Error())
}
