package software

import "errors"

// Package-level sentinel errors.
var (
	// ErrUnknownOutput is returned for an output id the software does not know.
	ErrUnknownOutput = errors.New("software: unknown output")

	// ErrDuplicateOutput is returned when two outputs share an id.
	ErrDuplicateOutput = errors.New("software: duplicate output id")

	// ErrInvalidOutputState is returned when parsing an unknown state name.
	ErrInvalidOutputState = errors.New("software: invalid output state")

	// ErrInvalidOutputType is returned when parsing an unknown type name.
	ErrInvalidOutputType = errors.New("software: invalid output type")
)
