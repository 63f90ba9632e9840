// SPDX-License-Identifier: MPL-2.0

// Package scriptunit loads generator units defined in unit.cue files. Each
// operation of such a unit is a POSIX shell script run in-process in the
// destination root of the composition context the unit is loaded into.
//
// A script receives the call arguments as positional parameters and the
// construction options as YOKE_OPT_<KEY> environment variables; its trimmed
// standard output is the operation result.
package scriptunit
