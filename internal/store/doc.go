// SPDX-License-Identifier: MPL-2.0

// Package store manages the local package store: one directory per
// installed package holding a yoke-package.toml manifest, and the shell
// installer that populates it.
package store
