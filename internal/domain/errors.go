package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds let callers react to business failures without string matching.
const (
	KindInsufficientBalance    = "insufficient_balance"
	KindInvalidAmount          = "invalid_amount"
	KindAccountNotFound        = "account_not_found"
	KindPlanNotFound           = "plan_not_found"
	KindConcurrentModification = "concurrent_modification"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// Ledger error constructors. These carry a Kind so API clients and the
// billing pipeline can distinguish them.

func ErrInsufficientBalance(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Kind: KindInsufficientBalance, Message: msg}
}

func ErrInvalidAmount(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Kind: KindInvalidAmount, Message: msg}
}

func ErrAccountNotFound() *AppError {
	return &AppError{Code: http.StatusNotFound, Kind: KindAccountNotFound, Message: "account not found"}
}

func ErrPlanNotFound() *AppError {
	return &AppError{Code: http.StatusNotFound, Kind: KindPlanNotFound, Message: "plan not found"}
}

func ErrConcurrentModification() *AppError {
	return &AppError{Code: http.StatusConflict, Kind: KindConcurrentModification, Message: "account was modified concurrently, retry the request"}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}
