// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"

	"github.com/yokehq/yoke/internal/issue"
	"github.com/yokehq/yoke/internal/scriptunit"
	"github.com/yokehq/yoke/internal/store"
	"github.com/yokehq/yoke/pkg/compose"
	"github.com/yokehq/yoke/pkg/namespace"
	"github.com/yokehq/yoke/pkg/resolve"
)

// Exit codes beyond the generic failure (1).
const (
	ExitUsage      = 2
	ExitUnresolved = 3
	ExitTimeout    = 124
)

// classify turns a failure of operation into an actionable error and the
// exit code the command should end with. Script failures keep the exit
// status of the script.
func classify(err error, operation string) (*issue.ActionableError, int) {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae, 1
	}

	ec := issue.NewErrorContext().WithOperation(operation).Wrap(err)
	code := 1

	var (
		scriptErr *scriptunit.ScriptError
		defErr    *scriptunit.InvalidDefinitionError
		prepErr   *resolve.EnvironmentPreparationError
	)
	switch {
	case errors.Is(err, namespace.ErrInvalidNamespace):
		ec.WithIssue(issue.InvalidNamespaceId).
			WithSuggestion("Run 'yoke namespace <value>' to see how a namespace is parsed")
		code = ExitUsage
	case errors.As(err, &prepErr):
		ec.WithIssue(issue.EnvironmentNotPreparedId).
			WithSuggestion("Check that the packages exist in the registry directory").
			WithSuggestion("Run 'yoke list' to see the generators installed locally")
		code = ExitUnresolved
	case errors.Is(err, compose.ErrUnitNotRegistered):
		ec.WithIssue(issue.UnitNotFoundId).
			WithSuggestion("Run 'yoke list' to see the generators installed locally")
		code = ExitUnresolved
	case errors.As(err, &scriptErr):
		ec.WithIssue(issue.ScriptFailedId).
			WithResource(scriptErr.Unit + "#:" + scriptErr.Operation)
		if scriptErr.ExitCode > 0 {
			code = scriptErr.ExitCode
		}
	case errors.As(err, &defErr):
		ec.WithIssue(issue.InvalidUnitFileId).WithResource(defErr.Path)
	case errors.Is(err, store.ErrInstallCommandFailed):
		ec.WithIssue(issue.InstallFailedId).
			WithSuggestion("Set install_command in the configuration or YOKE_INSTALL_COMMAND")
	case errors.Is(err, context.DeadlineExceeded):
		ec.WithSuggestion("Raise --timeout")
		code = ExitTimeout
	}
	return ec.Build(), code
}
