// SPDX-License-Identifier: MPL-2.0

// Package registry implements package metadata fetchers for the resolution
// pipeline: a registry laid out as JSON documents in a directory, and a
// read-through in-memory cache in front of any fetcher.
package registry
