package extension

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/classicvalues/phoenix/internal/logging"
)

// DependencyFetcher installs the third-party runtime dependencies of an
// installed package. Implementations run inside dir and report failure as error.
type DependencyFetcher interface {
	Fetch(ctx context.Context, dir string) error
}

// DependencyFetcherFunc adapts a function to DependencyFetcher.
type DependencyFetcherFunc func(ctx context.Context, dir string) error

// Fetch implements DependencyFetcher.
func (f DependencyFetcherFunc) Fetch(ctx context.Context, dir string) error {
	return f(ctx, dir)
}

// Default dependency fetch command.
const (
	DefaultDependencyCommand = "npm"
)

// DefaultDependencyArgs are passed to DefaultDependencyCommand.
func DefaultDependencyArgs() []string {
	return []string{"install", "--production"}
}

// ExecFetcher runs an external command with the package directory as its
// working directory. Only the exit status is interpreted.
type ExecFetcher struct {
	Command string
	Args    []string
	Env     []string
}

// NewExecFetcher returns an ExecFetcher, falling back to "npm install
// --production" when command is empty.
func NewExecFetcher(command string, args ...string) *ExecFetcher {
	if command == "" {
		command = DefaultDependencyCommand
		if len(args) == 0 {
			args = DefaultDependencyArgs()
		}
	}
	return &ExecFetcher{Command: command, Args: args}
}

// ExitError reports a fetch process that ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

// Error implements error.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// maxStderr bounds how much of the process stderr is kept in errors.
const maxStderr = 4096

// Fetch implements DependencyFetcher.
func (f *ExecFetcher) Fetch(ctx context.Context, dir string) error {
	log := logging.FromContext(ctx)

	//nolint:gosec // command comes from installer configuration, not package content
	cmd := exec.CommandContext(ctx, f.Command, f.Args...)
	cmd.Dir = dir
	if len(f.Env) > 0 {
		cmd.Env = append(cmd.Environ(), f.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug().
		Ctx(ctx).
		Str("component", "extension").
		Str("operation", "fetch_dependencies").
		Str("command", f.Command).
		Strs("args", f.Args).
		Str("dir", dir).
		Msg("running dependency fetch")

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		tail := strings.TrimSpace(stderr.String())
		if len(tail) > maxStderr {
			tail = tail[len(tail)-maxStderr:]
		}
		return &ExitError{Command: f.Command, ExitCode: exitErr.ExitCode(), Stderr: tail}
	}
	return fmt.Errorf("running %s: %w", f.Command, err)
}

// resolveDependencies runs fetcher for packages that declare dependencies and
// converts a failure into a validation error. The package stays installed.
func resolveDependencies(ctx context.Context, fetcher DependencyFetcher, dir string, desc *PackageDescriptor) []ValidationError {
	if fetcher == nil || !desc.HasDependencies() {
		return nil
	}
	if err := fetcher.Fetch(ctx, dir); err != nil {
		return []ValidationError{NewValidationError(ErrKindDependencyInstall, err.Error())}
	}
	return nil
}
