// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors for the yoke CLI: actionable
// errors carrying the failed operation and remediation hints, and a catalog
// of Markdown issue pages rendered with glamour.
package issue
