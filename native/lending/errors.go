package lending

import (
	"errors"
	"fmt"

	nativecommon "microlend/native/common"
)

// Code is the numeric failure tag surfaced to callers. Values are local to
// the lending module and never reused.
type Code uint32

const (
	CodeOK                     Code = 0
	CodeInvalidAmount          Code = 100
	CodeInvalidDuration        Code = 101
	CodeInsufficientTreasury   Code = 102
	CodeInsufficientCollateral Code = 103
	CodeLoanNotFound           Code = 104
	CodeLoanNotActive          Code = 105
	CodeLoanNotOverdue         Code = 106
	CodeTransferFailed         Code = 107
	CodeModulePaused           Code = 108
	CodeArithmeticOverflow     Code = 109
	CodeInvalidCaller          Code = 110
	CodeInternal               Code = 199
)

var codeNames = map[Code]string{
	CodeOK:                     "OK",
	CodeInvalidAmount:          "InvalidAmount",
	CodeInvalidDuration:        "InvalidDuration",
	CodeInsufficientTreasury:   "InsufficientTreasury",
	CodeInsufficientCollateral: "InsufficientCollateral",
	CodeLoanNotFound:           "LoanNotFound",
	CodeLoanNotActive:          "LoanNotActive",
	CodeLoanNotOverdue:         "LoanNotOverdue",
	CodeTransferFailed:         "TransferFailed",
	CodeModulePaused:           "ModulePaused",
	CodeArithmeticOverflow:     "ArithmeticOverflow",
	CodeInvalidCaller:          "InvalidCaller",
	CodeInternal:               "Internal",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error is a lending failure tagged with its numeric code.
type Error struct {
	Code  Code
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.msg
}

// Unwrap exposes the shared sentinel an error specialises, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, msg: msg}
}

var (
	ErrInvalidAmount          = newError(CodeInvalidAmount, "lending engine: amount must be positive")
	ErrInvalidDuration        = newError(CodeInvalidDuration, "lending engine: duration must be positive")
	ErrInsufficientTreasury   = newError(CodeInsufficientTreasury, "lending engine: insufficient treasury liquidity")
	ErrInsufficientCollateral = newError(CodeInsufficientCollateral, "lending engine: insufficient collateral")
	ErrLoanNotFound           = newError(CodeLoanNotFound, "lending engine: loan not found")
	ErrLoanNotActive          = newError(CodeLoanNotActive, "lending engine: loan not active")
	ErrLoanNotOverdue         = newError(CodeLoanNotOverdue, "lending engine: loan not overdue")
	ErrTransferFailed         = newError(CodeTransferFailed, "lending engine: asset transfer failed")
	ErrArithmeticOverflow     = newError(CodeArithmeticOverflow, "lending engine: arithmetic overflow")
	ErrInvalidCaller          = newError(CodeInvalidCaller, "lending engine: invalid caller")
	ErrModulePaused           = &Error{Code: CodeModulePaused, msg: "lending engine: module paused", cause: nativecommon.ErrModulePaused}

	errNilState = newError(CodeInternal, "lending engine: state not initialised")
	errNilAsset = newError(CodeInternal, "lending engine: asset transfer not configured")
)

// CodeOf extracts the numeric code carried by err. Nil maps to CodeOK and
// untagged errors to CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var tagged *Error
	if errors.As(err, &tagged) && tagged != nil {
		return tagged.Code
	}
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return CodeModulePaused
	}
	return CodeInternal
}

// ErrorForCode returns the sentinel associated with code, or nil when the code
// is unknown.
func ErrorForCode(code Code) *Error {
	for _, sentinel := range []*Error{
		ErrInvalidAmount, ErrInvalidDuration, ErrInsufficientTreasury,
		ErrInsufficientCollateral, ErrLoanNotFound, ErrLoanNotActive,
		ErrLoanNotOverdue, ErrTransferFailed, ErrArithmeticOverflow,
		ErrInvalidCaller, ErrModulePaused,
	} {
		if sentinel.Code == code {
			return sentinel
		}
	}
	return nil
}

func transferFailed(err error) error {
	return fmt.Errorf("%w: %v", ErrTransferFailed, err)
}
