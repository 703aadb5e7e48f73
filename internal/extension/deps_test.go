package extension

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecFetcher(t *testing.T) {
	f := NewExecFetcher("")
	assert.Equal(t, DefaultDependencyCommand, f.Command)
	assert.Equal(t, []string{"install", "--production"}, f.Args)

	f = NewExecFetcher("pnpm", "install", "--prod")
	assert.Equal(t, "pnpm", f.Command)
	assert.Equal(t, []string{"install", "--prod"}, f.Args)
}

func TestExecFetcherFetch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}

	t.Run("success runs in package directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), nil, 0o600))

		f := NewExecFetcher("sh", "-c", "test -f marker")
		require.NoError(t, f.Fetch(context.Background(), dir))
	})

	t.Run("non-zero exit", func(t *testing.T) {
		f := NewExecFetcher("sh", "-c", "echo registry unreachable >&2; exit 3")
		err := f.Fetch(context.Background(), t.TempDir())

		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 3, exitErr.ExitCode)
		assert.Equal(t, "registry unreachable", exitErr.Stderr)
		assert.Contains(t, err.Error(), "exited with status 3")
	})

	t.Run("extra environment", func(t *testing.T) {
		f := NewExecFetcher("sh", "-c", `test "$PHOENIX_TEST_VAR" = yes`)
		f.Env = []string{"PHOENIX_TEST_VAR=yes"}
		require.NoError(t, f.Fetch(context.Background(), t.TempDir()))
	})

	t.Run("missing command", func(t *testing.T) {
		f := NewExecFetcher("phoenix-command-that-does-not-exist")
		err := f.Fetch(context.Background(), t.TempDir())
		require.Error(t, err)

		var exitErr *ExitError
		assert.False(t, errors.As(err, &exitErr))
	})
}

func TestResolveDependencies(t *testing.T) {
	withDeps := &PackageDescriptor{Name: "pkg", Dependencies: map[string]string{"left-pad": "1.0.0"}}
	withoutDeps := &PackageDescriptor{Name: "pkg"}
	failing := DependencyFetcherFunc(func(context.Context, string) error {
		return errors.New("network down")
	})

	t.Run("no dependencies skips fetch", func(t *testing.T) {
		assert.Empty(t, resolveDependencies(context.Background(), failing, "/x", withoutDeps))
	})

	t.Run("nil fetcher", func(t *testing.T) {
		assert.Empty(t, resolveDependencies(context.Background(), nil, "/x", withDeps))
	})

	t.Run("failure becomes validation error", func(t *testing.T) {
		errs := resolveDependencies(context.Background(), failing, "/x", withDeps)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrKindDependencyInstall, errs[0].Kind)
		assert.Equal(t, []string{"network down"}, errs[0].Detail)
	})

	t.Run("fetch receives directory", func(t *testing.T) {
		var got string
		fetcher := DependencyFetcherFunc(func(_ context.Context, dir string) error {
			got = dir
			return nil
		})
		assert.Empty(t, resolveDependencies(context.Background(), fetcher, "/ext/user/pkg", withDeps))
		assert.Equal(t, "/ext/user/pkg", got)
	})
}
