// Package storeerr carries the shared failure taxonomy for the graph and
// vector store adapters. Callers branch on Code, never on error strings.
package storeerr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type Code string

const (
	CodeValidation       Code = "validation_failed"
	CodeEncodeFailed     Code = "encode_failed"
	CodeDecodeFailed     Code = "decode_failed"
	CodeTransportFailed  Code = "transport_failed"
	CodeTimeout          Code = "timeout"
	CodeQueryFailed      Code = "query_failed"
	CodeUnavailable      Code = "unavailable"
	CodePermissionDenied Code = "permission_denied"
)

type OperationError struct {
	Store      string
	Code       Code
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "store operation failed"
	}
	if e.Message != "" {
		return fmt.Sprintf(
			"%s operation failed (op=%s code=%s status=%d): %s",
			e.Store, e.Operation, e.Code, e.StatusCode, e.Message,
		)
	}
	if e.Cause != nil {
		return fmt.Sprintf(
			"%s operation failed (op=%s code=%s status=%d): %v",
			e.Store, e.Operation, e.Code, e.StatusCode, e.Cause,
		)
	}
	return fmt.Sprintf(
		"%s operation failed (op=%s code=%s status=%d)",
		e.Store, e.Operation, e.Code, e.StatusCode,
	)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func New(store, op string, code Code, msg string, cause error) *OperationError {
	return &OperationError{
		Store:     store,
		Code:      code,
		Operation: op,
		Message:   msg,
		Cause:     cause,
	}
}

// CodeOf extracts the taxonomy code from err, or empty when err is not an
// OperationError.
func CodeOf(err error) Code {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Code
	}
	return ""
}

// IsPermissionDenied reports whether err is a read-only guard violation.
func IsPermissionDenied(err error) bool {
	return CodeOf(err) == CodePermissionDenied
}

// IsRetryable reports whether the failure is worth another attempt:
// timeouts, transport trouble, and unavailability. Validation and
// permission failures never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeTimeout, CodeTransportFailed, CodeUnavailable:
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Classify maps a raw transport error onto the taxonomy, preserving the
// original as the cause.
func Classify(store, op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(store, op, CodeTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return New(store, op, CodeTimeout, message, err)
	}
	return New(store, op, CodeTransportFailed, message, err)
}
