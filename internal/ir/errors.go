package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures of graph operations.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a referenced record or edge is absent.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDecode indicates malformed tag bytes.
	ErrCodeDecode ErrorCode = "DECODE_ERROR"

	// ErrCodeInvariant indicates an operation would break a graph invariant.
	ErrCodeInvariant ErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeSubstrate is an opaque failure of the record/edge store.
	ErrCodeSubstrate ErrorCode = "SUBSTRATE_ERROR"
)

// Error is the structured error returned by every layer above the substrate.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Ref names the record or edge involved, if any.
	Ref Hash

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Ref != "" {
		msg += fmt.Sprintf(" (ref=%s)", e.Ref)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound creates a NOT_FOUND error for ref.
func NotFound(ref Hash, format string, args ...any) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...), Ref: ref}
}

// DecodeErr creates a DECODE_ERROR wrapping cause.
func DecodeErr(cause error, format string, args ...any) *Error {
	return &Error{Code: ErrCodeDecode, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Invariant creates an INVARIANT_VIOLATION error.
func Invariant(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvariant, Message: fmt.Sprintf(format, args...)}
}

// Substrate wraps a store failure as SUBSTRATE_ERROR. Errors that already
// carry a code are returned unchanged.
func Substrate(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	return &Error{Code: ErrCodeSubstrate, Message: op, Err: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err is or wraps a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsDecodeError returns true if err is or wraps a DECODE_ERROR.
func IsDecodeError(err error) bool { return CodeOf(err) == ErrCodeDecode }

// IsInvariantViolation returns true if err is or wraps an INVARIANT_VIOLATION.
func IsInvariantViolation(err error) bool { return CodeOf(err) == ErrCodeInvariant }

// IsSubstrateError returns true if err is or wraps a SUBSTRATE_ERROR.
func IsSubstrateError(err error) bool { return CodeOf(err) == ErrCodeSubstrate }

// PartialError reports a multi-write operation that failed after some of
// its physical writes had already succeeded. Those writes cannot be rolled
// back; they are listed so the caller can reconcile.
type PartialError struct {
	// Op names the failed operation.
	Op string

	// Err is the failure that stopped the operation.
	Err error

	// Created lists edges that were written.
	Created []Edge

	// Removed lists edges that were deleted.
	Removed []Edge

	// Records lists records that were written or tombstoned.
	Records []Hash
}

// Error implements the error interface.
func (e *PartialError) Error() string {
	return fmt.Sprintf("%s partially applied (created=%d removed=%d records=%d): %v",
		e.Op, len(e.Created), len(e.Removed), len(e.Records), e.Err)
}

// Unwrap returns the failure that stopped the operation.
func (e *PartialError) Unwrap() error {
	return e.Err
}

// AsPartial extracts a *PartialError from err's chain.
func AsPartial(err error) (*PartialError, bool) {
	var pe *PartialError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
