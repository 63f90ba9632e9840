// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes CUE documents validated against an embedded schema.
//
// Every CUE input of yoke (the application config and generator unit files)
// goes through the same steps: compile the schema, compile the document and
// unify it with a schema definition, validate, then decode into a Go value.
//
//	//go:embed unit_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[unitFile](schema, data, "#Unit",
//	    cueutil.WithFilename(path))
package cueutil
