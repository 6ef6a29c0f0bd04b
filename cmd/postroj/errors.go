// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/postroj/postroj/internal/distro"
	"github.com/postroj/postroj/internal/harness"
	"github.com/postroj/postroj/internal/issue"
	"github.com/postroj/postroj/internal/runner"
	"github.com/postroj/postroj/internal/supervisor"
)

// errRootfsNotFound is returned when --directory does not name a directory.
var errRootfsNotFound = errors.New("root filesystem not found")

// classifyError turns err into an ActionableError pointing at the most
// specific troubleshooting page. Errors that are already actionable are
// returned unchanged.
func classifyError(err error, operation, resource string) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	ctx := issue.NewErrorContext().WithOperation(operation).WithResource(resource).Wrap(err)

	var (
		failed    *runner.CommandFailedError
		supFailed *supervisor.SupervisedProcessFailedError
	)
	switch {
	case errors.Is(err, exec.ErrNotFound):
		ctx.WithIssue(issue.ToolNotFoundId).
			WithSuggestion("Install systemd-container or set tools.* in the config file")
	case errors.As(err, &supFailed):
		ctx.WithIssue(issue.MachineBootFailedId).
			WithSuggestion("Run with --verbose to see the boot console output").
			WithSuggestion("Check 'machinectl list' for a machine with the same name")
		if supFailed.Failure != nil {
			ctx.WithDetails(supFailed.Failure.Output)
		}
	case errors.Is(err, os.ErrPermission):
		ctx.WithIssue(issue.PermissionDeniedId).
			WithSuggestion("Run postroj as root")
	case errors.As(err, &failed):
		ctx.WithIssue(issue.CommandFailedId).WithDetails(failed.Output)
	case errors.Is(err, harness.ErrPortNotReady):
		ctx.WithIssue(issue.PortNotReadyId).
			WithSuggestion("Increase readiness.timeout in the config file")
	case errors.Is(err, distro.ErrInvalidImageReference):
		ctx.WithIssue(issue.InvalidImageReferenceId).
			WithSuggestion("Run 'postroj distros' to list known distributions")
	case errors.Is(err, errRootfsNotFound):
		ctx.WithIssue(issue.RootfsNotFoundId)
	}

	return ctx.Build()
}

// exitCodeFor returns the process exit status for err: the child's status
// for a failed command, 1 otherwise.
func exitCodeFor(err error) int {
	var failed *runner.CommandFailedError
	if errors.As(err, &failed) && !failed.ExitCode.IsSuccess() {
		return int(failed.ExitCode)
	}
	return 1
}

// fail renders err on stderr and returns the ExitError the handler should
// return. Verbose mode adds the troubleshooting page.
func (a *App) fail(cmd *cobra.Command, err error, operation, resource string) error {
	ae := classifyError(err, operation, resource)

	if a.flags.verbose {
		if page := ae.Issue(); page != nil {
			if rendered, renderErr := page.Render("dark"); renderErr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	fmt.Fprintf(a.stderr, "%s %s\n", ErrorStyle.Render("Error:"), strings.TrimRight(formatErrorForDisplay(ae, a.flags.verbose), "\n"))

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: exitCodeFor(err), Err: ae}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
