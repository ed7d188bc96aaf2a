// Package errors defines the HTTP-facing error shape returned by the
// accept API, same pattern as the teacher's src/errors/errors.go: a
// typed APIError with a stable code, a status, and constructors per
// failure kind.
package errors

import (
	"fmt"
	"net/http"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e APIError) Error() string {
	return e.Message
}

const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
	ErrCodeSelfTransfer   = "SELF_TRANSFER_NOT_ALLOWED"
)

func NewValidationError(message string) APIError {
	return APIError{Code: ErrCodeValidation, Message: message, Status: http.StatusBadRequest}
}

func NewNotFoundError(resource string) APIError {
	return APIError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", resource), Status: http.StatusNotFound}
}

func NewInternalServerError() APIError {
	return APIError{Code: ErrCodeInternalServer, Message: "internal server error", Status: http.StatusInternalServerError}
}

func NewSelfTransferError() APIError {
	return APIError{Code: ErrCodeSelfTransfer, Message: "cannot transfer to the same account", Status: http.StatusBadRequest}
}
