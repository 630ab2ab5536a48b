package lnurl

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHRP is returned when decoding a bech32 string whose
	// human-readable prefix is not 'lnurl'.
	ErrInvalidHRP = errors.New("invalid human-readable prefix")

	// ErrInvalidLNURL is returned when the decoded bech32 data does not
	// hold a valid UTF-8 URL.
	ErrInvalidLNURL = errors.New("invalid LNURL")

	// ErrUnknownTag is returned when a response payload carries a tag
	// that is not part of the protocol.
	ErrUnknownTag = errors.New("unknown response tag")
)

// ValidationError is returned when a response field does not satisfy its
// structural contract.
type ValidationError struct {
	// Field is the protocol (wire) name of the offending field.
	Field string

	// Reason describes why the value was rejected.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field '%s': %s", e.Field, e.Reason)
}

// ClassificationError wraps any failure to resolve a payload to one of the
// known response variants. The cause is preserved and can be inspected with
// errors.Is and errors.As.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("could not classify response: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
