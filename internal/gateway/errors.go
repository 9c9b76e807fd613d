package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Error is the uniform shape of every failed gateway call.
type Error struct {
	Status  *int
	Message string
	Data    any
}

func (e *Error) Error() string {
	if e.Status != nil {
		return fmt.Sprintf("gateway: status %d: %s", *e.Status, e.Message)
	}
	return "gateway: " + e.Message
}

// HTTPStatus returns the response status, or 0 when no response arrived.
func (e *Error) HTTPStatus() int {
	if e == nil || e.Status == nil {
		return 0
	}
	return *e.Status
}

// Normalize converts any error into an *Error.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Message: "request timed out"}
	}
	return &Error{Message: err.Error()}
}
