package usecase

import (
	"errors"
	"fmt"
)

// エラーコード（UI契約）
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeEmptyCart          = "EMPTY_CART"
	CodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	CodeVerificationFailed = "PAYMENT_VERIFICATION_FAILED"
	CodeConflict           = "CONFLICT"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeStorage            = "STORAGE_ERROR"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func NewHTTPError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}
