// SPDX-License-Identifier: MPL-2.0

package semver

import (
	"errors"
	"fmt"
)

// ErrInvalidSemVer is the sentinel error wrapped by InvalidSemVerError.
// ErrInvalidRange is the sentinel error wrapped by InvalidRangeError.
var (
	ErrInvalidSemVer = errors.New("invalid semver")
	ErrInvalidRange  = errors.New("invalid semver range")
)

type (
	// InvalidSemVerError is returned when a string is not a semantic version.
	InvalidSemVerError struct {
		Value string
	}

	// InvalidRangeError is returned when a range expression cannot be parsed.
	InvalidRangeError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidSemVerError) Error() string {
	return fmt.Sprintf("invalid semver %q", e.Value)
}

// Unwrap returns ErrInvalidSemVer so callers can use errors.Is for programmatic detection.
func (e *InvalidSemVerError) Unwrap() error { return ErrInvalidSemVer }

// Error implements the error interface.
func (e *InvalidRangeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid semver range %q", e.Value)
	}
	return fmt.Sprintf("invalid semver range %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidRange so callers can use errors.Is for programmatic detection.
func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }
