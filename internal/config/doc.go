// SPDX-License-Identifier: MPL-2.0

// Package config handles yoke's application configuration using Viper with
// CUE as the file format.
//
// The configuration lives in config.cue inside the platform config
// directory ($XDG_CONFIG_HOME/yoke on Linux). It is validated against an
// embedded schema, merged over the defaults, and can be overridden with
// YOKE_* environment variables (YOKE_STORE_DIR, YOKE_UI_LOG_LEVEL, ...).
package config
