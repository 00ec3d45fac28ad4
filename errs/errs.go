// Package errs holds the error taxonomy shared by every stage of the inverse
// transform. Stages wrap these sentinels with fmt.Errorf("%w: ...") and callers
// test for them with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownResolution is returned when a resolution tag was never registered.
	ErrUnknownResolution = errors.New("spectrans: unknown resolution")
	// ErrInvalidLayout is returned for conflicting or missing optional arguments.
	ErrInvalidLayout = errors.New("spectrans: invalid layout")
	// ErrDimensionMismatch is returned when an array or ownership vector does not
	// have the size implied by the resolution or the field counts.
	ErrDimensionMismatch = errors.New("spectrans: dimension mismatch")
	// ErrCallbackContract is returned when a Fourier-space hook changes the shape
	// of the unit it was handed.
	ErrCallbackContract = errors.New("spectrans: callback contract violation")
	// ErrCollectiveFailure is returned when a participant of the process group
	// failed or diverged during a collective exchange.
	ErrCollectiveFailure = errors.New("spectrans: collective failure")
)

// UnknownResolution wraps ErrUnknownResolution with the offending tag.
func UnknownResolution(tag int) error {
	return fmt.Errorf("%w: tag %d", ErrUnknownResolution, tag)
}

// InvalidLayout wraps ErrInvalidLayout with a formatted reason.
func InvalidLayout(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidLayout, fmt.Sprintf(format, args...))
}

// DimensionMismatch wraps ErrDimensionMismatch with a formatted reason.
func DimensionMismatch(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDimensionMismatch, fmt.Sprintf(format, args...))
}

// CallbackContract wraps ErrCallbackContract with a formatted reason.
func CallbackContract(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCallbackContract, fmt.Sprintf(format, args...))
}

// CollectiveFailure wraps ErrCollectiveFailure with a formatted reason.
func CollectiveFailure(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCollectiveFailure, fmt.Sprintf(format, args...))
}
