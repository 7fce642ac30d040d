// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

// Sentinel errors for the handler layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrBadGateway = errors.New("upstream unavailable")
)

// StatusError is implemented by errors that pick their own status and a
// message fit for the user.
type StatusError interface {
	error
	HTTPStatus() int
	UserMessage() string
}

// RespondError maps errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var se StatusError
	switch {
	case errors.As(err, &se):
		status := se.HTTPStatus()
		Problem(w, status, http.StatusText(status), se.UserMessage())
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrUnknownView):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, shared.ErrInvalidPageSize):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrBadGateway):
		Problem(w, http.StatusBadGateway, "Bad Gateway", "")
	case errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusGatewayTimeout, "Gateway Timeout", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
