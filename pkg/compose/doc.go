// SPDX-License-Identifier: MPL-2.0

// Package compose implements the composition tree generators run in.
//
// An Environment holds the catalog of unit definitions and the collaborators
// shared by a tree. Environment.Root creates the root Context; contexts
// create children per sub-generator and destination directory. Within a
// context each namespace id is instantiated at most once, and its API is
// published in the context's Surface.
//
// Units coordinate through the context:
//
//   - Do returns a loaded unit and fails otherwise.
//   - If branches on whether a unit is loaded without waiting.
//   - Once registers a callback fired exactly once when a unit loads.
//   - Await blocks until a unit loads.
//   - Require loads a unit, installing or discovering it when needed.
//   - Call invokes the methods named by a namespace on a loaded unit.
//   - With requires a unit and calls its methods, fanning out over every
//     configured instance for a wildcard namespace.
package compose
