package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is the numeric error identifier surfaced to callers of the ledger.
type Code uint16

const (
	CodeInsufficientBalance   Code = 100
	CodeInsufficientAllowance Code = 101
	CodeInvalidNonce          Code = 200
	CodeInvalidSignature      Code = 201
	CodeExpired               Code = 202
	CodeZeroAddress           Code = 203
)

func (c Code) String() string {
	switch c {
	case CodeInsufficientBalance:
		return "InsufficientBalance"
	case CodeInsufficientAllowance:
		return "InsufficientAllowance"
	case CodeInvalidNonce:
		return "InvalidNonce"
	case CodeInvalidSignature:
		return "InvalidSignature"
	case CodeExpired:
		return "Expired"
	case CodeZeroAddress:
		return "ZeroAddress"
	default:
		return fmt.Sprintf("Code(%d)", uint16(c))
	}
}

// Error is a ledger rejection carrying a stable numeric code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Is matches any *Error with the same code so wrapped copies still satisfy
// errors.Is against the sentinels below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !stderrors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

var (
	ErrInsufficientBalance   = &Error{Code: CodeInsufficientBalance, Message: "insufficient balance"}
	ErrInsufficientAllowance = &Error{Code: CodeInsufficientAllowance, Message: "insufficient allowance"}
	ErrInvalidNonce          = &Error{Code: CodeInvalidNonce, Message: "invalid nonce"}
	ErrInvalidSignature      = &Error{Code: CodeInvalidSignature, Message: "invalid signature"}
	ErrExpired               = &Error{Code: CodeExpired, Message: "authorization expired"}
	ErrZeroAddress           = &Error{Code: CodeZeroAddress, Message: "zero address"}
)

// CodeOf extracts the ledger code from err. The boolean is false for
// infrastructure failures that carry no code.
func CodeOf(err error) (Code, bool) {
	var ledgerErr *Error
	if stderrors.As(err, &ledgerErr) {
		return ledgerErr.Code, true
	}
	return 0, false
}

// Retryable reports whether resubmitting the same authorization may succeed
// later. Only balance shortfalls qualify; every other rejection requires a
// fresh authorization.
func Retryable(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeInsufficientBalance
}
