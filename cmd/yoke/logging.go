// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// newLogger returns a slog logger rendering through charmbracelet/log.
// Debug output carries the caller.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Level:        log.Level(level),
		Prefix:       "yoke",
		ReportCaller: level <= slog.LevelDebug,
	})
	return slog.New(handler)
}
