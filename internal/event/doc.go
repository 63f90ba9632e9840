// SPDX-License-Identifier: MPL-2.0

// Package event provides keyed one-shot notification cells used to signal
// that a unit has been loaded in a composition context.
package event
