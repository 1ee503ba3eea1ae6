// Package errors provides error handling for texsense.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Marking errors with a sentinel so callers can classify them
//
// Usage:
//
//	if err := decode(data, &v); err != nil {
//	    return errors.Mark(errors.Wrapf(err, "decode %s", name), errors.ErrResourceParse)
//	}
//
//	if errors.Is(err, errors.ErrResourceLoad) {
//	    // providers stay empty
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
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors. Wrap them with Mark or Wrap to add context while
// preserving the classification for errors.Is.
var (
	// ErrResourceLoad indicates a static resource file could not be read
	ErrResourceLoad = New("resource load failed")

	// ErrResourceParse indicates a static resource file had malformed content
	ErrResourceParse = New("resource parse failed")

	// ErrUnknownContextType indicates dispatch was asked for a context type
	// outside the fixed set
	ErrUnknownContextType = New("unknown context type")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrNotFound indicates the requested document or key does not exist
	ErrNotFound = New("not found")
)

// IsResourceError reports whether err is a load or parse failure of a static resource.
func IsResourceError(err error) bool {
	return err != nil && IsAny(err, ErrResourceLoad, ErrResourceParse)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}
