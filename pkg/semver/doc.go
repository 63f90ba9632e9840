// SPDX-License-Identifier: MPL-2.0

// Package semver parses semantic versions and version ranges and selects the
// highest version satisfying a range.
//
// Ranges follow the registry conventions generator packages are published
// with: caret and tilde operators, comparison operators, x-ranges, hyphen
// ranges, whitespace intersections and "||" unions.
package semver
