// SPDX-License-Identifier: MPL-2.0

package discovery

const (
	// SeverityWarning indicates a recoverable discovery warning.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a non-fatal discovery error.
	SeverityError Severity = "error"

	// CodeLocationUnreadable is reported when a lookup location cannot be listed.
	CodeLocationUnreadable = "location_unreadable"
	// CodeManifestSkipped is reported when a package manifest cannot be read.
	CodeManifestSkipped = "manifest_skipped"
	// CodeInvalidPattern is reported for malformed glob patterns.
	CodeInvalidPattern = "invalid_pattern"
)

type (
	// Severity represents discovery diagnostic severity.
	Severity string

	// Diagnostic is a structured, non-fatal discovery problem.
	Diagnostic struct {
		Severity Severity
		// Code is a machine-readable identifier such as "manifest_skipped".
		Code    string
		Message string
		// Path is the file or directory concerned, if any.
		Path  string
		Cause error
	}
)
