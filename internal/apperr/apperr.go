package apperr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeConfig            Code = "CONFIG_ERROR"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidStatus     Code = "INVALID_STATUS"
	CodePaystack          Code = "PAYSTACK_ERROR"
	CodeAmountMismatch    Code = "AMOUNT_MISMATCH"
	CodeDuplicate         Code = "DUPLICATE"
	CodeUserMismatch      Code = "USER_MISMATCH"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeInternal          Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	CodeConfig:            http.StatusInternalServerError,
	CodeValidation:        http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodeInvalidStatus:     http.StatusConflict,
	CodePaystack:          http.StatusBadGateway,
	CodeAmountMismatch:    http.StatusUnprocessableEntity,
	CodeDuplicate:         http.StatusConflict,
	CodeUserMismatch:      http.StatusForbidden,
	CodeInsufficientFunds: http.StatusUnprocessableEntity,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeInternal:          http.StatusInternalServerError,
}

// Error is an error carrying a client-facing code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, apperr.New(CodeNotFound, ""))
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func NotFound(what string) *Error {
	return New(CodeNotFound, what+" not found")
}

func Validation(msg string) *Error {
	return New(CodeValidation, msg)
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func HTTPStatus(code Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// PublicMessage is what a client is allowed to see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal {
		return e.Message
	}
	return "internal error"
}
