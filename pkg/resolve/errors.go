// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEnvironmentPreparation is the sentinel error wrapped by EnvironmentPreparationError.
var ErrEnvironmentPreparation = errors.New("environment preparation failed")

// EnvironmentPreparationError lists the namespaces that could be satisfied
// neither by installation nor by local lookup.
type EnvironmentPreparationError struct {
	Missing []string
}

// Error implements the error interface.
func (e *EnvironmentPreparationError) Error() string {
	return fmt.Sprintf("could not satisfy %d namespace(s): %s", len(e.Missing), strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrEnvironmentPreparation for errors.Is() compatibility.
func (e *EnvironmentPreparationError) Unwrap() error { return ErrEnvironmentPreparation }
