// SPDX-License-Identifier: MPL-2.0

// Package namespace parses generator namespaces and derives the keys used to
// identify, register, configure and install generator units.
//
// A namespace such as "@acme/web:api#blue:build,test@^2.0.0" names the
// package "@acme/yoke-web", the generator path "api", the instance "blue",
// the methods "build" and "test" and the version range "^2.0.0". Only the
// scope, hint, path and instance take part in identity (see Namespace.ID).
package namespace
