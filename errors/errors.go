// Package errors provides error handling for coflow.
//
// This package re-exports github.com/cockroachdb/errors, providing stack
// traces, wrapping, hints and assertion failures, and defines the sentinel
// errors that make up the flow error taxonomy.
//
// Usage:
//
//	if err := store.Load(ctx, code); err != nil {
//	    if errors.Is(err, errors.ErrNotFound) {
//	        // surface "Invalid flow code"
//	    }
//	    return errors.Wrap(err, "failed to join flow")
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf   = crdb.AssertionFailedf
	IsAssertionFailure = crdb.IsAssertionFailure
)

// Sentinel errors for the flow taxonomy.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates a share code does not resolve to a flow
	ErrNotFound = New("not found")

	// ErrTransport indicates the document store failed while loading or persisting
	ErrTransport = New("transport failure")

	// ErrNoActiveFlow indicates a mutation was attempted without an active flow.
	// Callers treat it as a silent no-op.
	ErrNoActiveFlow = New("no active flow")

	// ErrClosed indicates an operation on a closed session or store
	ErrClosed = New("closed")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsTransportError checks if an error is or wraps ErrTransport
func IsTransportError(err error) bool {
	return err != nil && Is(err, ErrTransport)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// WrapTransport marks err as a transport failure while keeping its message and stack
func WrapTransport(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, msg), ErrTransport)
}
