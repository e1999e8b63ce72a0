package domain

import (
	"errors"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrAuth         = errors.New("unauthorized")
	ErrStore        = errors.New("store failure")
	ErrTooManyRooms = errors.New("max rooms reached")
)

// HTTPStatus maps an error from the chat core onto an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrTooManyRooms):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Reason renders err for a client. Store and unknown failures are not
// described beyond a generic message.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrAuth),
		errors.Is(err, ErrTooManyRooms):
		return err.Error()
	default:
		return "internal error"
	}
}
