// SPDX-License-Identifier: MPL-2.0

// Package resolve makes missing generator namespaces available before they
// are instantiated.
//
// Pipeline.Prepare checks which namespaces are missing, resolves their
// packages against a registry (walking generator peer dependencies), installs
// everything in one batch, falls back to discovering generators on disk, and
// fails with an EnvironmentPreparationError for whatever is still missing.
// Registry failures are the only errors absorbed along the way.
package resolve
