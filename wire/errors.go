package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Fatal decode/encode conditions. Every one of them aborts the current call.
var (
	// ErrTruncated is returned when input ends before a primitive or a
	// bounded frame is complete.
	ErrTruncated = errors.New("truncated input")
	// ErrFramingViolation is returned when the read position overshoots a
	// declared length limit.
	ErrFramingViolation = errors.New("read past declared length limit")
	// ErrCorruptKey is returned for a field key carrying field number 0.
	ErrCorruptKey = errors.New("invalid field number 0 in key")
	// ErrVarintTooLong is returned for a varint longer than 10 bytes.
	ErrVarintTooLong = errors.New("varint too long")
	// ErrUnsupportedWireType is returned when an unknown field uses a wire
	// type that cannot be skipped.
	ErrUnsupportedWireType = errors.New("unsupported wire type")
	// ErrMissingRequired is returned when a required field is absent on encode.
	ErrMissingRequired = errors.New("required field not set")
)

// FieldError represents an encoding/decoding error with a field path.
type FieldError struct {
	FieldPath []string // e.g., ["order", "items", "price"]
	Err       error    // underlying error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.FieldPath) == 0 {
		return e.Err.Error()
	}

	return fmt.Sprintf("error at proto path %s: %v", strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for compatibility.
func (e *FieldError) Is(target error) bool {
	_, ok := target.(*FieldError)
	return ok
}

// wrapWithField wraps an error with a field name
func wrapWithField(err error, fieldName string) error {
	if err == nil {
		return nil
	}

	if fe, ok := err.(*FieldError); ok {
		return &FieldError{
			FieldPath: append([]string{fieldName}, fe.FieldPath...),
			Err:       fe.Err,
		}
	}

	return &FieldError{
		FieldPath: []string{fieldName},
		Err:       err,
	}
}
