package model

import "errors"

// Expected operation failures. Every operation returns one of these verbatim
// or wraps it; anything else is an internal fault.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrLimitExceeded       = errors.New("amount exceeds the per-operation limit")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrSelfTransfer        = errors.New("cannot transfer to your own account")
	ErrSelfRequest         = errors.New("cannot request payment from yourself")
	ErrAccountNotFound     = errors.New("account not found")
	ErrMovementNotFound    = errors.New("movement not found")
	ErrRequestNotFound     = errors.New("payment request not found")
	ErrExpenseNotFound     = errors.New("group expense not found")
	ErrNotAuthorized       = errors.New("not authorized for this operation")
	ErrPinNotConfigured    = errors.New("a 4-digit PIN must be set before making transactions")
	ErrPinAlreadySet       = errors.New("PIN is already set")
	ErrInvalidPin          = errors.New("invalid PIN")
	ErrInvalidOldPin       = errors.New("current PIN is incorrect")
	ErrMalformedPin        = errors.New("PIN must be exactly 4 digits")
	ErrRequestResolved     = errors.New("payment request is no longer pending")
	ErrExpenseNotActive    = errors.New("group expense is not active")
	ErrNotAMember          = errors.New("not a member of this expense")
	ErrMemberPaid          = errors.New("share already paid for this expense")
	ErrNotAllPaid          = errors.New("all members must pay before settling")
	ErrInsufficientMembers = errors.New("at least one other member is required")
	ErrSplitMismatch       = errors.New("split amounts do not match the total")
	ErrDuplicateNumber     = errors.New("account number already in use")
)

// ErrorKind buckets expected failures for callers that report or map them.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindAuthorization     ErrorKind = "authorization"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindLimit             ErrorKind = "limit_exceeded"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindInternal          ErrorKind = "internal"
)

// KindOf classifies err into the failure taxonomy. Unknown errors are
// internal faults and must not leak details to callers.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrSelfTransfer),
		errors.Is(err, ErrSelfRequest),
		errors.Is(err, ErrMalformedPin),
		errors.Is(err, ErrInsufficientMembers):
		return KindValidation
	case errors.Is(err, ErrNotAuthorized),
		errors.Is(err, ErrPinNotConfigured),
		errors.Is(err, ErrInvalidPin),
		errors.Is(err, ErrInvalidOldPin):
		return KindAuthorization
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrMovementNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrExpenseNotFound),
		errors.Is(err, ErrNotAMember):
		return KindNotFound
	case errors.Is(err, ErrRequestResolved),
		errors.Is(err, ErrExpenseNotActive),
		errors.Is(err, ErrMemberPaid),
		errors.Is(err, ErrNotAllPaid),
		errors.Is(err, ErrSplitMismatch),
		errors.Is(err, ErrPinAlreadySet),
		errors.Is(err, ErrDuplicateNumber):
		return KindConflict
	case errors.Is(err, ErrLimitExceeded):
		return KindLimit
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	}
	return KindInternal
}
