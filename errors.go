package distcp

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind classifies the failures the core can produce, per the error
// handling design: planner failures abort the whole call, per-tuple
// failures are captured in a TransferResult and the job continues.
type ErrorKind int

const (
	// ErrorKindNone is the zero value; never attached to a returned Error.
	ErrorKindNone ErrorKind = iota
	// ErrorKindInvalidOption marks a bad chunkSize or contradictory flags.
	ErrorKindInvalidOption
	// ErrorKindNoSourceMatch marks an empty glob expansion.
	ErrorKindNoSourceMatch
	// ErrorKindMissingDestinationParent marks an absent destination parent directory.
	ErrorKindMissingDestinationParent
	// ErrorKindDestinationExists marks a target present with overwrite disabled.
	ErrorKindDestinationExists
	// ErrorKindCollision marks two planned sources targeting the same destination.
	ErrorKindCollision
	// ErrorKindRPC marks a failed remote operation.
	ErrorKindRPC
	// ErrorKindChecksumMismatch is reserved for future end-to-end verification.
	ErrorKindChecksumMismatch
	// ErrorKindCancelled marks cooperative cancellation.
	ErrorKindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindInvalidOption:
		return "InvalidOption"
	case ErrorKindNoSourceMatch:
		return "NoSourceMatch"
	case ErrorKindMissingDestinationParent:
		return "MissingDestinationParent"
	case ErrorKindDestinationExists:
		return "DestinationExists"
	case ErrorKindCollision:
		return "Collision"
	case ErrorKindRPC:
		return "RpcError"
	case ErrorKindChecksumMismatch:
		return "ChecksumMismatch"
	case ErrorKindCancelled:
		return "Cancelled"
	default:
		return "None"
	}
}

// Error is the typed error the core raises. It wraps an underlying cause
// with github.com/pkg/errors so %+v formatting keeps a stack trace from
// the point of failure.
type Error struct {
	Kind  ErrorKind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

// Unwrap lets errors.Is/errors.As see through to the cause.
func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

func wrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.Wrapf(cause, format, args...)}
}

// KindOf extracts the ErrorKind from err, or ErrorKindNone if err isn't
// (or doesn't wrap) a *Error.
func KindOf(err error) ErrorKind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return ErrorKindNone
}

// RpcErrorf builds an *Error of kind ErrorKindRPC from a RemoteFS
// adapter. Adapters use this (or wrap their own error with the same
// kind) to surface failures through the contract described in §6; the
// "File does not exist" substring must be preserved verbatim for
// IsNotExist to recognize absence.
func RpcErrorf(format string, args ...interface{}) *Error {
	return newError(ErrorKindRPC, format, args...)
}

// IsNotExist reports whether err represents a remote "file does not
// exist" condition, per the RemoteFS contract's recognizable substring.
func IsNotExist(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file does not exist")
}
