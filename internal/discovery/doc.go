// SPDX-License-Identifier: MPL-2.0

// Package discovery locates generator units on the local filesystem.
//
// A lookup location is a directory of installed packages: plain packages
// sit directly below it (<dir>/yoke-foo) and scoped packages below their
// scope (<dir>/@acme/yoke-web). Each package keeps its units at
// generators/<path>/unit.cue, where <path> may span several directories.
//
// Locations are searched in order (the package store first, then the
// configured lookup paths), and the first location providing a package
// wins. Problems that do not stop the lookup are returned as diagnostics
// rather than logged, so the CLI decides how to render them.
package discovery
