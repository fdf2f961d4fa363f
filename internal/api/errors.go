package api

import (
	"errors"
	"fmt"

	"github.com/zombor/smartreceipt/internal/receipt"
)

// ValidationError is a client-side rejection; the request is never sent
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NetworkError means the backend could not be reached
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("cannot reach backend: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is an error status returned by the backend
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("Server error: %d", e.StatusCode)
}

const networkMessage = "Cannot connect to server. Please check if the backend is running."

// UserMessage turns any error from this package or the exporter into the
// text shown to the user.
func UserMessage(err error) string {
	var (
		validationErr *ValidationError
		networkErr    *NetworkError
		serverErr     *ServerError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &networkErr):
		return networkMessage
	case errors.As(err, &serverErr):
		return serverErr.Error()
	case errors.Is(err, receipt.ErrEmptyExport):
		return "No receipts to export"
	default:
		return "An unexpected error occurred"
	}
}
