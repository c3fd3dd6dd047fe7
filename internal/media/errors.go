package media

import (
	"errors"
	"fmt"
)

// Error kinds shared by every stage of the render pipeline.
var (
	// ErrDecode is returned when a single image or audio input cannot be read.
	// The run continues without that input.
	ErrDecode = errors.New("decode failed")
	// ErrConfiguration is returned for unsupported transitions, non-positive
	// durations or frame rates, and similar invalid settings.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrEncode is returned when the external encoder fails.
	ErrEncode = errors.New("encode failed")
	// ErrEmptyInput is returned when no image survives normalization.
	ErrEmptyInput = errors.New("no images left to render")
)

// DecodeError records which input could not be decoded.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDecode) match any *DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
