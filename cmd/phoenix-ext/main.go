// Command phoenix-ext installs and manages phoenix extensions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/classicvalues/phoenix/internal/cli"
	"github.com/classicvalues/phoenix/pkg/version"
)

// Exit codes.
const (
	exitOK            = 0
	exitError         = 1
	exitInstallFailed = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version.GetVersion())
	if err := root.ExecuteContext(ctx); err != nil {
		code := exitCode(err)
		if code != exitInstallFailed {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return code
	}
	return exitOK
}

// exitCode maps a command error to the process exit status. Failed
// validations have already been reported on stdout.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, cli.ErrInstallFailed):
		return exitInstallFailed
	default:
		return exitError
	}
}
