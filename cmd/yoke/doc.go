// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the yoke command line interface.
//
// The App type is the composition root: it loads configuration and builds
// the package store, registry, installer, discovery locator, script unit
// loader and task queue that back a composition environment. Cobra
// handlers receive the App and never construct collaborators themselves.
package cmd
