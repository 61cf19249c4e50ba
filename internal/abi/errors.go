package abi

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeSyntax is returned when a type string cannot be parsed.
	ErrTypeSyntax = errors.New("abi: invalid type syntax")
	// ErrInvalidEncoding is returned when encoded data points outside itself or is not canonical.
	ErrInvalidEncoding = errors.New("abi: invalid encoding")
	// ErrInsufficientData is returned when encoded data is shorter than its layout requires.
	ErrInsufficientData = errors.New("abi: insufficient data")
	// ErrInvalidValue is returned when a value does not match its declared type.
	ErrInvalidValue = errors.New("abi: invalid value")
)

// TypeSyntaxError describes a malformed type string.
type TypeSyntaxError struct {
	Input  string
	Reason string
}

func (e *TypeSyntaxError) Error() string {
	return fmt.Sprintf("abi: invalid type %q: %s", e.Input, e.Reason)
}

func (e *TypeSyntaxError) Unwrap() error { return ErrTypeSyntax }

// InvalidEncodingError describes an offset, length or word that cannot be decoded.
type InvalidEncodingError struct {
	Offset int
	Reason string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("abi: invalid encoding at byte %d: %s", e.Offset, e.Reason)
}

func (e *InvalidEncodingError) Unwrap() error { return ErrInvalidEncoding }

// InsufficientDataError reports how many bytes the layout needed versus what was present.
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("abi: insufficient data: need %d bytes, have %d", e.Need, e.Have)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// ValueError describes a value whose Go shape does not fit its ABI type.
type ValueError struct {
	Type   string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("abi: invalid %s value: %s", e.Type, e.Reason)
}

func (e *ValueError) Unwrap() error { return ErrInvalidValue }

func valueErrorf(t Type, format string, args ...any) error {
	return &ValueError{Type: t.String(), Reason: fmt.Sprintf(format, args...)}
}
