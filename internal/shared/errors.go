package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnknownView occurs when a list view name is not registered.
	ErrUnknownView = errors.New("unknown list view")
	// ErrInvalidPageSize signals a page size that is not a positive integer.
	ErrInvalidPageSize = errors.New("page size must be a positive integer")
)
