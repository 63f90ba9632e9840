// SPDX-License-Identifier: MPL-2.0

package compose

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned when a unit is required to be loaded but is not.
	ErrNotLoaded = errors.New("unit not loaded")

	// ErrWildcardNotAllowed is returned when a wildcard instance is passed to
	// an operation that addresses a single unit.
	ErrWildcardNotAllowed = errors.New("wildcard instance not allowed")

	// ErrMalformedNamespace is returned when a namespace carries methods or a
	// version range where only an identity is expected.
	ErrMalformedNamespace = errors.New("malformed namespace")

	// ErrNoMethodsSpecified is returned by Call when the namespace names no methods.
	ErrNoMethodsSpecified = errors.New("no methods specified")

	// ErrGeneratorRequired is returned by With when the namespace has no generator path.
	ErrGeneratorRequired = errors.New("generator path required")

	// ErrUnitNotRegistered is returned when no definition exists for a namespace.
	ErrUnitNotRegistered = errors.New("unit not registered")

	// ErrUnknownOperation is returned when a method is not exposed by a unit API.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrDuplicateDefinition is returned when a registration key is registered twice.
	ErrDuplicateDefinition = errors.New("duplicate unit definition")

	// ErrInvalidUnit is returned when a definition or a constructed unit is unusable.
	ErrInvalidUnit = errors.New("invalid unit")
)

type (
	// NotLoadedError reports the namespace id that is not loaded.
	NotLoadedError struct {
		ID string
	}

	// WildcardNotAllowedError reports the operation that rejected a wildcard.
	WildcardNotAllowedError struct {
		Op string
		ID string
	}

	// MalformedNamespaceError reports a decorated namespace passed to Do.
	MalformedNamespaceError struct {
		Complete string
		ID       string
	}

	// NoMethodsSpecifiedError reports a Call without methods.
	NoMethodsSpecifiedError struct {
		ID string
	}

	// GeneratorRequiredError reports a With on a namespace without generator path.
	GeneratorRequiredError struct {
		Namespace string
	}

	// UnitNotRegisteredError reports a missing catalog definition.
	UnitNotRegisteredError struct {
		Key string
	}

	// UnknownOperationError reports a method missing from a unit API.
	UnknownOperationError struct {
		ID        string
		Operation string
	}

	// DuplicateDefinitionError reports a registration key registered twice.
	DuplicateDefinitionError struct {
		Key string
	}

	// InvalidUnitError reports an unusable definition or unit.
	InvalidUnitError struct {
		Key    string
		Reason string
	}
)

func (e *NotLoadedError) Error() string { return fmt.Sprintf("unit %q is not loaded", e.ID) }

// Unwrap returns ErrNotLoaded for errors.Is() compatibility.
func (e *NotLoadedError) Unwrap() error { return ErrNotLoaded }

func (e *WildcardNotAllowedError) Error() string {
	return fmt.Sprintf("%s: wildcard instance not allowed in %q", e.Op, e.ID)
}

// Unwrap returns ErrWildcardNotAllowed for errors.Is() compatibility.
func (e *WildcardNotAllowedError) Unwrap() error { return ErrWildcardNotAllowed }

func (e *MalformedNamespaceError) Error() string {
	return fmt.Sprintf("namespace %q carries methods or a version range; use %q", e.Complete, e.ID)
}

// Unwrap returns ErrMalformedNamespace for errors.Is() compatibility.
func (e *MalformedNamespaceError) Unwrap() error { return ErrMalformedNamespace }

func (e *NoMethodsSpecifiedError) Error() string {
	return fmt.Sprintf("no methods specified for %q", e.ID)
}

// Unwrap returns ErrNoMethodsSpecified for errors.Is() compatibility.
func (e *NoMethodsSpecifiedError) Unwrap() error { return ErrNoMethodsSpecified }

func (e *GeneratorRequiredError) Error() string {
	return fmt.Sprintf("namespace %q has no generator path", e.Namespace)
}

// Unwrap returns ErrGeneratorRequired for errors.Is() compatibility.
func (e *GeneratorRequiredError) Unwrap() error { return ErrGeneratorRequired }

func (e *UnitNotRegisteredError) Error() string {
	return fmt.Sprintf("no unit registered for %q", e.Key)
}

// Unwrap returns ErrUnitNotRegistered for errors.Is() compatibility.
func (e *UnitNotRegisteredError) Unwrap() error { return ErrUnitNotRegistered }

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unit %q has no operation %q", e.ID, e.Operation)
}

// Unwrap returns ErrUnknownOperation for errors.Is() compatibility.
func (e *UnknownOperationError) Unwrap() error { return ErrUnknownOperation }

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("unit %q is already registered", e.Key)
}

// Unwrap returns ErrDuplicateDefinition for errors.Is() compatibility.
func (e *DuplicateDefinitionError) Unwrap() error { return ErrDuplicateDefinition }

func (e *InvalidUnitError) Error() string {
	return fmt.Sprintf("invalid unit %q: %s", e.Key, e.Reason)
}

// Unwrap returns ErrInvalidUnit for errors.Is() compatibility.
func (e *InvalidUnitError) Unwrap() error { return ErrInvalidUnit }
