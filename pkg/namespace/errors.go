// SPDX-License-Identifier: MPL-2.0

package namespace

import (
	"errors"
	"fmt"
)

// ErrInvalidNamespace is the sentinel error wrapped by InvalidNamespaceError.
var ErrInvalidNamespace = errors.New("invalid namespace")

// InvalidNamespaceError is returned when a string does not follow the
// namespace grammar. It wraps ErrInvalidNamespace for errors.Is() compatibility.
type InvalidNamespaceError struct {
	Value  string
	Reason string
	Err    error
}

func invalid(value, reason string) *InvalidNamespaceError {
	return &InvalidNamespaceError{Value: value, Reason: reason}
}

// Error implements the error interface.
func (e *InvalidNamespaceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid namespace %q: %s: %v", e.Value, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid namespace %q: %s", e.Value, e.Reason)
}

// Unwrap returns the sentinel and, when present, the underlying cause.
func (e *InvalidNamespaceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidNamespace, e.Err}
	}
	return []error{ErrInvalidNamespace}
}
