package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/providers"
)

const version = "0.3.0"

// Exit codes shared by both binaries.
const (
	ExitSuccess      = 0
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
	ExitAPIFailure   = 5
)

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// Replaced in tests.
var (
	newGenerator = providers.New
	gitBinary    = "git"
)

// Shared flags.
var (
	flagModel   string
	flagTimeout int
	flagDebug   bool
)

// RunCritic executes the critic command and returns an exit code.
func RunCritic() int {
	return execute(newCriticCmd())
}

// RunFanout executes the fanout command and returns an exit code.
func RunFanout() int {
	return execute(newFanoutCmd())
}

func execute(cmd *cobra.Command) int {
	exitCode = ExitSuccess
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

// fail reports err on w and records code as the exit code. It returns nil so
// cobra does not print usage for runtime failures.
func fail(w io.Writer, code int, err error) error {
	printError(w, err)
	exitCode = code
	return nil
}

// exitFor maps a failure to its exit code.
func exitFor(err error) int {
	if errors.Is(err, providers.ErrCredentialMissing) || providers.IsAuthError(err) {
		return ExitAuthError
	}
	return ExitRuntimeError
}

func newVersionCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print " + name + " version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", name, version)
		},
	}
}
