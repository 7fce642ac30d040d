package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnavailable wraps transport failures: the backend could not be reached.
	ErrUnavailable = errors.New("backend: unavailable")
	// ErrUpstream wraps 5xx responses.
	ErrUpstream = errors.New("backend: upstream error")
	// ErrDecode wraps payloads that could not be read.
	ErrDecode = errors.New("backend: malformed response")
)

// genericRejection is shown when a 4xx response carries no message.
const genericRejection = "La operación fue rechazada por el servidor."

// RejectionError is a 4xx response. Message is the server text, verbatim.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: rejected with status %d", e.Status)
	}
	return fmt.Sprintf("backend: rejected with status %d: %s", e.Status, e.Message)
}

// UserMessage returns the text to show the user.
func (e *RejectionError) UserMessage() string {
	if strings.TrimSpace(e.Message) == "" {
		return genericRejection
	}
	return e.Message
}

// HTTPStatus returns the status the backend answered with.
func (e *RejectionError) HTTPStatus() int {
	return e.Status
}

// NotFound reports whether the rejection is a 404.
func (e *RejectionError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// IsRejection reports whether err is a backend rejection.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}

// errorBody lists the fields a backend error may carry its message in.
type errorBody struct {
	Error   any    `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (b errorBody) text() string {
	switch v := b.Error.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if b.Message != "" {
		return b.Message
	}
	return b.Detail
}
